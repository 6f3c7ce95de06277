package faceannotate

import (
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	DefaultCascadeName = "haarcascade_frontalface_alt2.xml"
	DefaultPicoName    = "facefinder"
	DefaultCascadeDir  = "/usr/local/share/opencv4/haarcascades"

	copyChunk     = 4096
	extractPrefix = "cascade-"
)

// ExtractAsset copies name from the read-only src into a fresh private
// directory under dir and returns the path of the copy. The copy is only
// reported once every byte of the source has reached the disk. On failure
// the private directory is removed and dir is left as it was.
func ExtractAsset(src fs.FS, name, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", &AssetError{Op: "mkdir", Path: dir, Err: errors.WithStack(err)}
	}

	in, err := src.Open(name)
	if err != nil {
		return "", &AssetError{Op: "open", Path: name, Err: errors.WithStack(err)}
	}
	defer in.Close()

	// Taken before anything is written, so a source living under dir can
	// never be measured after being touched.
	size := int64(-1)
	if st, err := in.Stat(); err == nil && st.Mode().IsRegular() {
		size = st.Size()
	}

	private, err := os.MkdirTemp(dir, extractPrefix+"*")
	if err != nil {
		return "", &AssetError{Op: "mkdir", Path: dir, Err: errors.WithStack(err)}
	}
	dest := filepath.Join(private, path.Base(name))
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		os.RemoveAll(private)
		return "", &AssetError{Op: "create", Path: dest, Err: errors.WithStack(err)}
	}

	fail := func(op string, err error) (string, error) {
		out.Close()
		os.RemoveAll(private)
		return "", &AssetError{Op: op, Path: dest, Err: err}
	}

	// Plain Reader/Writer wrappers keep io.CopyBuffer on the fixed chunk
	// instead of handing off to ReadFrom/WriteTo.
	n, err := io.CopyBuffer(struct{ io.Writer }{out}, struct{ io.Reader }{in}, make([]byte, copyChunk))
	if err != nil {
		return fail("copy", errors.Wrapf(err, "tras %d bytes", n))
	}
	if size >= 0 && size != n {
		return fail("copy", errors.Errorf("copia incompleta: %d de %d bytes", n, size))
	}
	if err := out.Sync(); err != nil {
		return fail("sync", errors.WithStack(err))
	}
	if err := out.Close(); err != nil {
		os.RemoveAll(private)
		return "", &AssetError{Op: "close", Path: dest, Err: errors.WithStack(err)}
	}

	slog.Debug("recurso de cascada extraído", "path", dest, "bytes", n)
	return dest, nil
}

// CleanupAsset removes the private directory ExtractAsset created for
// asset. Anything else is refused. Failure is only logged.
func CleanupAsset(asset string) {
	dir := filepath.Dir(asset)
	if !strings.HasPrefix(filepath.Base(dir), extractPrefix) {
		slog.Warn("directorio ajeno a la extracción, no se elimina", "dir", dir)
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		slog.Warn("no se pudo eliminar el directorio de cascada", "dir", dir, "err", err)
	}
}
