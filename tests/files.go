// Package tests provides access to external conformance suites (test roms and
// single-step processor tests), downloading them on first use.
package tests

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"golang.org/x/sync/errgroup"
)

func testsDir() string {
	_, b, _, _ := runtime.Caller(0)
	return filepath.Dir(b)
}

func decompress(zipFile, dest string) (int, error) {
	r, err := zip.OpenReader(zipFile)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	for _, f := range r.File {
		fname := strings.Replace(f.Name, "nes-test-roms-master", "nes-test-roms", 1)
		fpath := filepath.Join(dest, fname)
		if !strings.HasPrefix(fpath, filepath.Clean(dest)+string(os.PathSeparator)) {
			return 0, fmt.Errorf("%s: illegal file path", fpath)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(fpath, os.ModePerm); err != nil {
				return 0, err
			}
			continue
		}

		if err := extract(f, fpath); err != nil {
			return 0, err
		}
	}

	return len(r.File), nil
}

func extract(f *zip.File, fpath string) error {
	if err := os.MkdirAll(filepath.Dir(fpath), os.ModePerm); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(fpath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}

func download(url string, w io.Writer) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

func downloadTestRoms(dest string) error {
	const url = `https://github.com/christopherpow/nes-test-roms/archive/refs/heads/master.zip`

	tmpf, err := os.CreateTemp("", "nes-test-roms-*-.zip")
	if err != nil {
		return err
	}
	defer os.Remove(tmpf.Name())
	defer tmpf.Close()

	if err := download(url, tmpf); err != nil {
		return err
	}

	if _, err := decompress(tmpf.Name(), dest); err != nil {
		return fmt.Errorf("failed to decompress test roms: %w", err)
	}
	return nil
}

var romsOnce = sync.OnceValues(func() (string, error) {
	romsDir := filepath.Join(testsDir(), "nes-test-roms")
	if _, err := os.Stat(romsDir); errors.Is(err, fs.ErrNotExist) {
		if err := downloadTestRoms(testsDir()); err != nil {
			return "", err
		}
	}
	return romsDir, nil
})

// RomsPath returns the path to the nes-test-roms directory, downloading it if
// necessary. The test is skipped if the roms can't be downloaded.
func RomsPath(tb testing.TB) string {
	tb.Helper()

	dir, err := romsOnce()
	if err != nil {
		tb.Skipf("nes-test-roms unavailable: %s", err)
	}
	return dir
}

// download all 256 (one per opcode) single-step processor test files into dest dir.
func downloadProcessorTests(dest string) error {
	const urlfmt = `https://raw.githubusercontent.com/SingleStepTests/65x02/main/nes6502/v1/%s.json`

	tempdir, err := os.MkdirTemp("", "processor.tests.*")
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())

	for opcode := range 256 {
		opstr := fmt.Sprintf("%02x", opcode)

		g.Go(func() error {
			f, err := os.Create(filepath.Join(tempdir, opstr+".json"))
			if err != nil {
				return err
			}
			defer f.Close()

			return download(fmt.Sprintf(urlfmt, opstr), f)
		})
	}

	if err := g.Wait(); err != nil {
		os.RemoveAll(tempdir)
		return fmt.Errorf("failed to download all files: %w", err)
	}

	return os.Rename(tempdir, dest)
}

var procTestsOnce = sync.OnceValues(func() (string, error) {
	dir := filepath.Join(testsDir(), "processor.tests")
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		if err := downloadProcessorTests(dir); err != nil {
			return "", err
		}
	}
	return dir, nil
})

// ProcessorTestsPath returns the directory containing the single-step
// processor tests, one JSON file per opcode. The test is skipped if they can't
// be downloaded.
func ProcessorTestsPath(tb testing.TB) string {
	tb.Helper()

	dir, err := procTestsOnce()
	if err != nil {
		tb.Skipf("processor tests unavailable: %s", err)
	}
	return dir
}
