// Package atomicio provides crash-safe file writes: write to a temp file in
// the destination directory, fsync, close, then rename over the final path.
// A reader never observes a partially written file.
package atomicio

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"gopkg.in/yaml.v3"
)

// DefaultDirMode and DefaultFileMode match the teacher's storage layer.
const (
	DefaultDirMode  = 0o700
	DefaultFileMode = 0o600
)

// WriteFunc writes content to w. Returning an error aborts the write; the
// temp file is removed and the destination is left untouched.
type WriteFunc func(w io.Writer) error

// Write atomically writes the output of fn to path. The parent directory is
// created if missing.
func Write(path string, fn WriteFunc) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DefaultDirMode); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(DefaultFileMode); err != nil {
		_ = tmp.Close()
		return err
	}

	// Hold an exclusive flock on the temp file for the duration of the
	// write+fsync, per spec §4.2. This guards against another process in
	// the same tree inspecting the temp file mid-write; the rename below
	// is what actually publishes the result.
	if err := syscall.Flock(int(tmp.Fd()), syscall.LOCK_EX); err != nil {
		_ = tmp.Close()
		return err
	}

	if err := fn(tmp); err != nil {
		_ = syscall.Flock(int(tmp.Fd()), syscall.LOCK_UN)
		_ = tmp.Close()
		return err
	}

	if err := tmp.Sync(); err != nil {
		_ = syscall.Flock(int(tmp.Fd()), syscall.LOCK_UN)
		_ = tmp.Close()
		return err
	}

	if err := syscall.Flock(int(tmp.Fd()), syscall.LOCK_UN); err != nil {
		_ = tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}

	committed = true
	return nil
}

// WriteBytes atomically writes raw bytes to path.
func WriteBytes(path string, data []byte) error {
	return Write(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// WriteString atomically writes a string to path.
func WriteString(path string, s string) error {
	return WriteBytes(path, []byte(s))
}

// WriteJSON atomically writes v as indented JSON to path.
func WriteJSON(path string, v any) error {
	return Write(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

// WriteYAML atomically writes v as YAML to path.
func WriteYAML(path string, v any) error {
	return Write(path, func(w io.Writer) error {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	})
}

// AppendJSONL appends one JSON-encoded line to path, creating it if missing.
// Appends are not atomic in the rename sense (the file is opened O_APPEND),
// but each line is written with a single Write+Sync so a crash mid-append
// truncates cleanly at the last complete line.
func AppendJSONL(path string, v any) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), DefaultDirMode); err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, DefaultFileMode)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// ReadYAML reads and unmarshals a YAML file at path into v.
func ReadYAML(path string, v any) error {
	data, err := ReadBytes(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, v)
}

// ReadJSON reads and unmarshals a JSON file at path into v.
func ReadJSON(path string, v any) error {
	data, err := ReadBytes(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// ReadBytes reads path under a shared flock, so a reader never observes a
// file that a concurrent Write is still holding its exclusive lock on.
func ReadBytes(path string) (data []byte, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_SH); err != nil {
		return nil, err
	}
	defer func() { _ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN) }()

	return io.ReadAll(f)
}
