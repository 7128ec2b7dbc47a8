package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"simflow/internal/logger"
)

type SupabaseConfig struct {
	URL    string
	Key    string
	Bucket string
}

func (c SupabaseConfig) Configured() bool {
	return c.URL != "" && c.Key != "" && c.Bucket != ""
}

// Supabase uploads into a Supabase Storage bucket over its REST API.
type Supabase struct {
	cfg    SupabaseConfig
	http   *http.Client
	logger logger.Logger
}

func NewSupabase(cfg SupabaseConfig, httpClient *http.Client, log logger.Logger) *Supabase {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &Supabase{
		cfg:    cfg,
		http:   httpClient,
		logger: log.With(logger.String("destination", DestinationSupabase)),
	}
}

func (s *Supabase) Name() string { return DestinationSupabase }

func (s *Supabase) Export(ctx context.Context, src *Source, destinationFolder string) (*Result, error) {
	folder := strings.Trim(destinationFolder, "/")
	if folder == "" {
		folder = src.Name
	}

	// Clearing is best effort.
	if err := s.clearFolder(ctx, folder); err != nil {
		s.logger.Debug("could not clear existing folder", logger.String("folder", folder), logger.Error(err))
	}

	res := &Result{
		Location:       fmt.Sprintf("%s/%s", s.cfg.Bucket, folder),
		SupabaseBucket: s.cfg.Bucket,
		SupabaseFolder: folder,
	}
	for _, f := range src.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.upload(ctx, f, folder+"/"+f.Name); err != nil {
			s.logger.Warn("upload failed", logger.String("file", f.Name), logger.Error(err))
			res.failed(f, err)
			continue
		}
		res.uploaded(f)
	}
	return res, nil
}

type storageObject struct {
	Name string `json:"name"`
}

func (s *Supabase) clearFolder(ctx context.Context, folder string) error {
	var objects []storageObject
	listBody := map[string]any{"prefix": folder, "limit": 1000}
	if err := s.call(ctx, http.MethodPost, "/storage/v1/object/list/"+s.cfg.Bucket, listBody, &objects); err != nil {
		return err
	}
	if len(objects) == 0 {
		return nil
	}

	prefixes := make([]string, 0, len(objects))
	for _, o := range objects {
		prefixes = append(prefixes, folder+"/"+o.Name)
	}
	s.logger.Info("deleting existing folder contents", logger.String("folder", folder), logger.Int("files", len(prefixes)))
	return s.call(ctx, http.MethodDelete, "/storage/v1/object/"+s.cfg.Bucket, map[string]any{"prefixes": prefixes}, nil)
}

func (s *Supabase) upload(ctx context.Context, f File, objectPath string) error {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.cfg.URL, s.cfg.Bucket, escapePath(objectPath))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	s.authorize(req)
	req.Header.Set("Content-Type", f.ContentType)
	req.Header.Set("x-upsert", "true")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

func (s *Supabase) call(ctx context.Context, method, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, s.cfg.URL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	s.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (s *Supabase) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.cfg.Key)
	req.Header.Set("apikey", s.cfg.Key)
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

// checkStatus turns a non-2xx response into an error carrying the body's
// message when there is one.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Message != "" {
			return fmt.Errorf("status %d: %s", resp.StatusCode, payload.Message)
		}
		if msg, ok := payload.Error.(string); ok && msg != "" {
			return fmt.Errorf("status %d: %s", resp.StatusCode, msg)
		}
		if obj, ok := payload.Error.(map[string]any); ok {
			if msg, ok := obj["message"].(string); ok {
				return fmt.Errorf("status %d: %s", resp.StatusCode, msg)
			}
		}
	}
	if len(body) > 0 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return errors.New(resp.Status)
}
