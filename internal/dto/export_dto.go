package dto

import "simflow/internal/domain"

type ExportRequest struct {
	SourceFolder      string `json:"source_folder" binding:"required"`
	DestinationFolder string `json:"destination_folder,omitempty"`
}

// ExportResponse reports one destination. Destination specific fields are
// filled only by the destination that owns them.
type ExportResponse struct {
	Success        bool                 `json:"success"`
	Destination    string               `json:"destination"`
	Location       string               `json:"location"`
	FilesUploaded  int                  `json:"files_uploaded"`
	FilesFailed    int                  `json:"files_failed"`
	TotalSizeBytes int64                `json:"total_size_bytes"`
	Files          []domain.FileOutcome `json:"files"`
	Errors         []string             `json:"errors,omitempty"`

	SupabaseBucket string `json:"supabase_bucket,omitempty"`
	SupabaseFolder string `json:"supabase_folder,omitempty"`
	FolderCreated  string `json:"folder_created,omitempty"`
	FolderID       string `json:"folder_id,omitempty"`
	FolderURL      string `json:"folder_url,omitempty"`
	Bucket         string `json:"bucket,omitempty"`
	Prefix         string `json:"prefix,omitempty"`
}

func (r *ExportResponse) ToDomain() *domain.DestinationOutcome {
	out := &domain.DestinationOutcome{
		Destination:    r.Destination,
		Success:        r.Success,
		Location:       r.Location,
		FilesUploaded:  r.FilesUploaded,
		FilesFailed:    r.FilesFailed,
		TotalSizeBytes: r.TotalSizeBytes,
		Files:          r.Files,
	}
	if len(r.Errors) > 0 {
		out.Error = r.Errors[0]
	}
	return out
}
