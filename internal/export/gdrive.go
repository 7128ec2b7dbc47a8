package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/jwt"

	"simflow/internal/logger"
)

const (
	driveScope         = "https://www.googleapis.com/auth/drive"
	driveAPIBase       = "https://www.googleapis.com/drive/v3"
	driveUploadBase    = "https://www.googleapis.com/upload/drive/v3"
	driveFolderMIME    = "application/vnd.google-apps.folder"
	defaultGoogleToken = "https://oauth2.googleapis.com/token"
)

type GDriveConfig struct {
	CredentialsPath string
	// DefaultFolder is the parent folder (URL or id) used when a request
	// does not name one.
	DefaultFolder string
	APIBase       string
	UploadBase    string
}

// serviceAccount is the subset of a Google service-account key file we need.
type serviceAccount struct {
	ClientEmail  string `json:"client_email"`
	PrivateKey   string `json:"private_key"`
	PrivateKeyID string `json:"private_key_id"`
	TokenURI     string `json:"token_uri"`
}

// GDrive uploads a folder into Google Drive as a new subfolder.
type GDrive struct {
	cfg    GDriveConfig
	http   *http.Client
	logger logger.Logger
}

// NewGDrive builds a Drive client authenticated with the service account key
// at cfg.CredentialsPath. Tokens are fetched lazily through ctx's HTTP client.
func NewGDrive(ctx context.Context, cfg GDriveConfig, log logger.Logger) (*GDrive, error) {
	raw, err := os.ReadFile(cfg.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read drive credentials: %w", err)
	}
	var sa serviceAccount
	if err := json.Unmarshal(raw, &sa); err != nil {
		return nil, fmt.Errorf("parse drive credentials: %w", err)
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return nil, errors.New("drive credentials missing client_email or private_key")
	}
	if sa.TokenURI == "" {
		sa.TokenURI = defaultGoogleToken
	}

	conf := &jwt.Config{
		Email:        sa.ClientEmail,
		PrivateKey:   []byte(sa.PrivateKey),
		PrivateKeyID: sa.PrivateKeyID,
		Scopes:       []string{driveScope},
		TokenURL:     sa.TokenURI,
	}

	if cfg.APIBase == "" {
		cfg.APIBase = driveAPIBase
	}
	if cfg.UploadBase == "" {
		cfg.UploadBase = driveUploadBase
	}

	return &GDrive{
		cfg:    cfg,
		http:   oauth2.NewClient(ctx, conf.TokenSource(ctx)),
		logger: log.With(logger.String("destination", DestinationGDrive)),
	}, nil
}

func (g *GDrive) Name() string { return DestinationGDrive }

func (g *GDrive) Export(ctx context.Context, src *Source, destinationFolder string) (*Result, error) {
	parent := destinationFolder
	if parent == "" {
		parent = g.cfg.DefaultFolder
	}
	if parent == "" {
		return nil, fmt.Errorf("%w: no google drive folder given", ErrNotConfigured)
	}
	parentID, err := FolderID(parent)
	if err != nil {
		return nil, err
	}

	folder, err := g.createFolder(ctx, src.Name, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive folder: %w", err)
	}
	folderURL := folder.WebViewLink
	if folderURL == "" {
		folderURL = "https://drive.google.com/drive/folders/" + folder.ID
	}

	res := &Result{
		Location:      folderURL,
		FolderCreated: src.Name,
		FolderID:      folder.ID,
		FolderURL:     folderURL,
	}
	for _, f := range src.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := g.upload(ctx, f, folder.ID); err != nil {
			g.logger.Warn("upload failed", logger.String("file", f.Name), logger.Error(err))
			res.failed(f, err)
			continue
		}
		res.uploaded(f)
	}
	return res, nil
}

// FolderID accepts a bare folder id or a Drive folder URL such as
// https://drive.google.com/drive/u/0/folders/<id>?usp=sharing.
func FolderID(urlOrID string) (string, error) {
	if !strings.Contains(urlOrID, "/") {
		return urlOrID, nil
	}
	parts := strings.Split(strings.TrimRight(urlOrID, "/"), "/")
	for i, part := range parts {
		if part == "folders" && i+1 < len(parts) {
			id, _, _ := strings.Cut(parts[i+1], "?")
			if id != "" {
				return id, nil
			}
		}
	}
	return "", fmt.Errorf("%w: could not extract folder id from %q", ErrInvalidFolder, urlOrID)
}

type driveFile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	WebViewLink string `json:"webViewLink"`
}

func (g *GDrive) createFolder(ctx context.Context, name, parentID string) (*driveFile, error) {
	body, err := json.Marshal(map[string]any{
		"name":     name,
		"mimeType": driveFolderMIME,
		"parents":  []string{parentID},
	})
	if err != nil {
		return nil, err
	}

	q := url.Values{"fields": {"id,name,webViewLink"}, "supportsAllDrives": {"true"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.APIBase+"/files?"+q.Encode(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out driveFile
	if err := g.send(req, &out); err != nil {
		return nil, err
	}
	g.logger.Info("created drive folder", logger.String("name", name), logger.String("id", out.ID))
	return &out, nil
}

func (g *GDrive) upload(ctx context.Context, f File, parentID string) error {
	content, err := os.ReadFile(f.Path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	meta, err := json.Marshal(map[string]any{"name": f.Name, "parents": []string{parentID}})
	if err != nil {
		return err
	}
	part, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=UTF-8"}})
	if err != nil {
		return err
	}
	if _, err := part.Write(meta); err != nil {
		return err
	}

	part, err = mw.CreatePart(textproto.MIMEHeader{"Content-Type": {f.ContentType}})
	if err != nil {
		return err
	}
	if _, err := part.Write(content); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	q := url.Values{"uploadType": {"multipart"}, "fields": {"id,name,size"}, "supportsAllDrives": {"true"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.UploadBase+"/files?"+q.Encode(), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+mw.Boundary())

	return g.send(req, nil)
}

func (g *GDrive) send(req *http.Request, out any) error {
	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
