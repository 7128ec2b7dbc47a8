package dto

type FileEntry struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	Extension string `json:"extension"`
}

type FileListResponse struct {
	Success    bool        `json:"success"`
	FolderPath string      `json:"folder_path"`
	FolderName string      `json:"folder_name"`
	FileCount  int         `json:"file_count"`
	Files      []FileEntry `json:"files"`
}

type FileReadResponse struct {
	Success    bool   `json:"success"`
	FilePath   string `json:"file_path"`
	FileName   string `json:"file_name"`
	TotalLines int    `json:"total_lines"`
	Truncated  bool   `json:"truncated"`
	Content    string `json:"content"`
}
