package profiles

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// extract unpacks the archive into dir, flattening members to their base
// names. Profile members are stored under their canonical name; any other
// file, such as the CA certificate, keeps its name. At most budget bytes are
// written in total. It returns the number of profiles written.
func extract(archive, dir, vendor string, budget int64) (int, error) {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return 0, fmt.Errorf("open archive: %w", err)
	}
	defer r.Close()

	profiles := 0
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := path.Base(strings.ReplaceAll(f.Name, `\`, "/"))
		if name == "." || name == ".." || name == "/" || strings.HasPrefix(name, ".") {
			continue
		}

		if strings.HasSuffix(name, ".ovpn") {
			canonical, err := ParseName(vendor, name)
			if err != nil {
				return 0, err
			}
			name = canonical
			profiles++
		}

		if err := writeMember(f, filepath.Join(dir, name), &budget); err != nil {
			return 0, err
		}
	}
	return profiles, nil
}

func writeMember(f *zip.File, dst string, budget *int64) error {
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer src.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(dst), err)
	}
	n, err := io.Copy(out, io.LimitReader(src, *budget+1))
	if err != nil {
		out.Close()
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	if n > *budget {
		out.Close()
		return fmt.Errorf("extract %s: %w", f.Name, ErrArchiveTooLarge)
	}
	*budget -= n
	return out.Close()
}
