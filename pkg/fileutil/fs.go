package fileutil

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FileSystem は実ファイルシステムと埋め込みファイルシステムを統一的に扱うインターフェース
type FileSystem interface {
	// Open はファイルを開く（大文字小文字を無視）
	Open(name string) (fs.File, error)
	// Resolve は大文字小文字を無視してファイルを検索し、実際のパスを返す
	Resolve(name string) (string, error)
	// IsEmbedded は埋め込みファイルシステムかどうかを返す
	IsEmbedded() bool
}

// RealFS は実ファイルシステムへのアクセスを提供する
type RealFS struct {
	basePath string
}

// NewRealFS は実ファイルシステム用のFileSystemを作成する
// basePath が空の場合、相対パスはカレントディレクトリから解決される
func NewRealFS(basePath string) *RealFS {
	return &RealFS{basePath: basePath}
}

func (r *RealFS) Open(name string) (fs.File, error) {
	actual, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	return os.Open(actual)
}

func (r *RealFS) Resolve(name string) (string, error) {
	p := name
	if r.basePath != "" && !filepath.IsAbs(name) {
		p = filepath.Join(r.basePath, name)
	}
	return ResolvePath(p)
}

func (r *RealFS) IsEmbedded() bool {
	return false
}

// EmbedFS は埋め込みファイルシステム（embed.FS, fstest.MapFS など）へのアクセスを提供する
type EmbedFS struct {
	fsys     fs.FS
	basePath string
}

// NewEmbedFS は埋め込みファイルシステム用のFileSystemを作成する
func NewEmbedFS(fsys fs.FS, basePath string) *EmbedFS {
	return &EmbedFS{fsys: fsys, basePath: basePath}
}

func (e *EmbedFS) Open(name string) (fs.File, error) {
	actual, err := e.Resolve(name)
	if err != nil {
		return nil, err
	}
	return e.fsys.Open(actual)
}

func (e *EmbedFS) Resolve(name string) (string, error) {
	p := e.resolvePath(name)

	// まず直接アクセスを試みる
	if info, err := fs.Stat(e.fsys, p); err == nil && !info.IsDir() {
		return p, nil
	}

	// 大文字小文字を無視して検索
	return FindFileCaseInsensitiveFS(e.fsys, path.Dir(p), path.Base(p))
}

func (e *EmbedFS) IsEmbedded() bool {
	return true
}

func (e *EmbedFS) resolvePath(name string) string {
	// fs.FS では "/" を使用し、先頭の "/" は許されない
	cleanName := strings.TrimLeft(strings.ReplaceAll(name, "\\", "/"), "/")
	if e.basePath != "" {
		return path.Join(e.basePath, cleanName)
	}
	return path.Clean(cleanName)
}
