package main

import (
	"errors"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	maxImageSize   = 5 << 20
	imageKeyPrefix = "quiz_images/"
	mediaURLPrefix = "/media/"
)

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

type ImageStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Delete(key string) error
	Root() string
}

type FSImageStore struct{ base string }

func NewFSImageStore(base string) (*FSImageStore, error) {
	if base == "" {
		base = "./media"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &FSImageStore{base: base}, nil
}

func (s *FSImageStore) Root() string { return s.base }

func (s *FSImageStore) Put(key string, r io.Reader) (string, error) {
	dst, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	return key, nil
}

func (s *FSImageStore) Delete(key string) error {
	dst, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// resolve keeps keys inside the base directory.
func (s *FSImageStore) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if key == "" || clean == "/" {
		return "", errors.New("empty key")
	}
	return filepath.Join(s.base, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

// saveQuizImage sniffs the upload and stores it under a fresh key.
func saveQuizImage(store ImageStore, fh *multipart.FileHeader) (string, error) {
	if fh.Size > maxImageSize {
		return "", &ValidationError{Fields: map[string]string{"image": "Image is too large (max 5 MB)."}}
	}
	f, err := fh.Open()
	if err != nil {
		return "", &ValidationError{Fields: map[string]string{"image": "The submitted file is empty or could not be read."}}
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return "", &ValidationError{Fields: map[string]string{"image": "The submitted file could not be read."}}
	}
	if !mimetype.EqualsAny(mt.String(), allowedImageTypes...) {
		return "", &ValidationError{Fields: map[string]string{
			"image": "Upload a valid image. The file you uploaded was either not an image or a corrupted image.",
		}}
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return store.Put(imageKeyPrefix+uuid.New().String()+mt.Extension(), f)
}

func imageURL(key string) string {
	if key == "" {
		return ""
	}
	return mediaURLPrefix + key
}
