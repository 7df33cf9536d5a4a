// Package install replaces certificate files on disk and signals the web
// server afterwards. The two concerns are split: a failed reload never
// rolls back an installation, because the new certificate is already
// valid and will be picked up on the server's next natural reload.
package install

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ksyq12/certd/internal/acme"
	"github.com/ksyq12/certd/internal/errors"
	"github.com/ksyq12/certd/internal/logger"
	"github.com/ksyq12/certd/internal/store"
)

const tmpSuffix = ".tmp"

// Installer writes a renewed certificate into a domain set's directory
// without ever leaving a partially-written pair behind. All three files
// are staged as temp files in the target directory and fsynced before the
// first rename happens, so a failure during staging leaves the previous
// pair untouched.
type Installer struct {
	// DirMode is the permission for created certificate directories.
	DirMode os.FileMode

	syncDir func(dir string) error
}

// NewInstaller creates an Installer with default permissions.
func NewInstaller() *Installer {
	return &Installer{DirMode: 0755, syncDir: syncDir}
}

// Install stages and atomically renames cert.pem, key.pem, and chain.pem
// in dir. The chain file is only written when the CA returned a separate
// issuer chain.
func (in *Installer) Install(dir string, issued *acme.IssuedCertificate) error {
	if len(issued.Certificate) == 0 {
		return errors.Wrap(errors.CodeInstall, "empty certificate payload", nil)
	}
	if len(issued.PrivateKey) == 0 {
		return errors.Wrap(errors.CodeInstall, "empty private key payload", nil)
	}

	if err := os.MkdirAll(dir, in.DirMode); err != nil {
		return errors.Wrap(errors.CodeInstall, fmt.Sprintf("create %s", dir), err)
	}

	type target struct {
		name string
		data []byte
		mode os.FileMode
	}
	targets := []target{
		{store.KeyFile, issued.PrivateKey, 0600},
		{store.CertFile, issued.Certificate, 0644},
	}
	if len(issued.IssuerChain) > 0 {
		targets = append(targets, target{store.ChainFile, issued.IssuerChain, 0644})
	}

	staged := make([]string, 0, len(targets))
	cleanup := func() {
		for _, tmp := range staged {
			os.Remove(tmp)
		}
	}

	// Stage everything first. Nothing visible changes until the renames.
	for _, tgt := range targets {
		tmp := filepath.Join(dir, tgt.name+tmpSuffix)
		if err := writeFileSync(tmp, tgt.data, tgt.mode); err != nil {
			cleanup()
			return errors.Wrap(errors.CodeInstall, fmt.Sprintf("stage %s", tgt.name), err)
		}
		staged = append(staged, tmp)
	}

	// Rename into place. Each rename is indivisible to any observer; the
	// key goes first so a freshly staged pair is completed by the very
	// next rename.
	for i, tgt := range targets {
		final := filepath.Join(dir, tgt.name)
		if err := os.Rename(staged[i], final); err != nil {
			cleanup()
			return errors.Wrap(errors.CodeInstall, fmt.Sprintf("install %s", tgt.name), err)
		}
	}

	// The renamed pair is not durable until the directory entries are
	// flushed. The files are in place, but an unconfirmed swap is treated
	// as a failed install and retried.
	sync := in.syncDir
	if sync == nil {
		sync = syncDir
	}
	if err := sync(dir); err != nil {
		return errors.Wrap(errors.CodeInstall, fmt.Sprintf("fsync %s", dir), err)
	}

	logger.InfoFields("certificate installed", map[string]interface{}{
		"dir":   dir,
		"files": len(targets),
	})
	return nil
}

// writeFileSync writes data and fsyncs before closing, so the staged file
// is durable before any rename makes it visible.
func writeFileSync(path string, data []byte, mode os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// syncDir flushes the directory entry updates from the renames.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
