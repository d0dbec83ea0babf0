package uploads

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/dmarjanovic/gopress/pkg"
)

// DiskSink stores uploaded images flat in one directory, under random
// names, and hands back the stored filename
type DiskSink struct {
	root string
}

func NewDiskSink(root string) (*DiskSink, error) {
	rootExists, err := pkg.PathExists(root, true)
	if err != nil {
		return nil, fmt.Errorf("check uploads root: %w", err)
	}
	if !rootExists {
		if err := os.MkdirAll(root, os.ModePerm); err != nil {
			return nil, fmt.Errorf("create uploads root: %w", err)
		}
		log.Debugf("uploads root created: %s", root)
	}

	return &DiskSink{
		root: root,
	}, nil
}

func (s *DiskSink) Root() string {
	return s.root
}

// Save writes the file under a random name, keeping the original
// extension, and returns the stored filename
func (s *DiskSink) Save(ctx context.Context, originalFilename string, file io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	randomName, err := pkg.GenerateRandomHexString(16)
	if err != nil {
		return "", fmt.Errorf("generate file name: %w", err)
	}
	storedName := randomName + filepath.Ext(originalFilename)

	destination, err := os.Create(filepath.Join(s.root, storedName))
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer func() {
		if err := destination.Close(); err != nil {
			log.Errorf("save upload, close file: %s", err)
		}
	}()

	written, err := io.Copy(destination, file)
	if err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	log.Tracef("upload stored: %s (%d bytes)", storedName, written)
	return storedName, nil
}
