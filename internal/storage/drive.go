package storage

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/bobarin/scenecut/internal/services"
)

const folderMimeType = "application/vnd.google-apps.folder"

// Drive uploads finished videos to Google Drive below a root folder, using a
// service account.
type Drive struct {
	svc          *drive.Service
	rootFolderID string
	logger       *zap.Logger
}

// DriveCredentials returns service-account JSON from the inline value or,
// failing that, from the file at credentialsPath. Empty when neither is set.
func DriveCredentials(inlineJSON, credentialsPath string) ([]byte, error) {
	if inlineJSON != "" {
		return []byte(inlineJSON), nil
	}
	if credentialsPath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	return data, nil
}

func NewDrive(ctx context.Context, credentialsJSON []byte, rootFolderID string, logger *zap.Logger, opts ...option.ClientOption) (*Drive, error) {
	if len(credentialsJSON) > 0 {
		opts = append(opts, option.WithCredentialsJSON(credentialsJSON))
	}
	opts = append(opts, option.WithScopes(drive.DriveScope))

	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive client: %w", err)
	}

	return &Drive{
		svc:          svc,
		rootFolderID: rootFolderID,
		logger:       logger.Named("drive"),
	}, nil
}

// EnsureFolder walks folderPath from the root folder, creating any folder
// that does not exist yet, and returns the leaf folder id.
func (d *Drive) EnsureFolder(ctx context.Context, folderPath []string) (string, error) {
	parent := d.rootFolderID
	for _, name := range folderPath {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		id, err := d.findFolder(ctx, parent, name)
		if err != nil {
			return "", err
		}
		if id == "" {
			id, err = d.createFolder(ctx, parent, name)
			if err != nil {
				return "", err
			}
		}
		parent = id
	}
	return parent, nil
}

func (d *Drive) findFolder(ctx context.Context, parent, name string) (string, error) {
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", escapeQuery(name), folderMimeType)
	if parent != "" {
		q += fmt.Sprintf(" and '%s' in parents", escapeQuery(parent))
	}

	list, err := d.svc.Files.List().
		Context(ctx).
		Q(q).
		Fields("files(id, name)").
		PageSize(1).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to look up folder %q: %w", name, err)
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}

func (d *Drive) createFolder(ctx context.Context, parent, name string) (string, error) {
	folder := &drive.File{Name: name, MimeType: folderMimeType}
	if parent != "" {
		folder.Parents = []string{parent}
	}

	created, err := d.svc.Files.Create(folder).
		Context(ctx).
		Fields("id").
		SupportsAllDrives(true).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to create folder %q: %w", name, err)
	}

	d.logger.Info("created drive folder", zap.String("name", name), zap.String("folder_id", created.Id))
	return created.Id, nil
}

// UploadFile uploads localPath into folderID.
func (d *Drive) UploadFile(ctx context.Context, folderID, localPath, name, contentType string) (*services.UploadedFile, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	meta := &drive.File{Name: name}
	if folderID != "" {
		meta.Parents = []string{folderID}
	}

	created, err := d.svc.Files.Create(meta).
		Context(ctx).
		Media(f, googleapi.ContentType(contentType)).
		Fields("id, webViewLink, webContentLink").
		SupportsAllDrives(true).
		Do()
	if err != nil {
		return nil, fmt.Errorf("drive upload failed: %w", err)
	}

	return &services.UploadedFile{
		FileID:         created.Id,
		WebViewLink:    created.WebViewLink,
		WebContentLink: created.WebContentLink,
	}, nil
}

// escapeQuery escapes a value for a Drive query string literal.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
