package expiry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/open-chat-labs/open-chat-sub005/pkg/logger"
	"github.com/open-chat-labs/open-chat-sub005/pkg/timeutil"
)

// fileLease guards the GC sweep so only one process runs it against a
// shared data directory. Acquisition is an atomic hardlink create;
// stale leases are taken over after their TTL.
type fileLease struct {
	path string
}

type leaseFile struct {
	Owner   string `json:"owner"`
	Expires string `json:"expires"`
}

func newFileLease(dir string) *fileLease {
	return &fileLease{path: filepath.Join(dir, "gc.lock")}
}

func (l *fileLease) Acquire(owner string, ttl time.Duration) (bool, error) {
	now := timeutil.Now()
	lf := leaseFile{Owner: owner, Expires: now.Add(ttl).Format(time.RFC3339)}
	b, _ := json.Marshal(lf)
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		logger.Error("gc_lease_tmp_write_failed", "path", tmp, "error", err)
		return false, err
	}
	if err := os.Link(tmp, l.path); err == nil {
		os.Remove(tmp)
		return true, nil
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return false, err
	}
	var existing leaseFile
	if err := json.Unmarshal(data, &existing); err != nil {
		return false, err
	}
	expT, _ := time.Parse(time.RFC3339, existing.Expires)
	if expT.Before(now) {
		if err := os.Rename(tmp, l.path); err != nil {
			logger.Error("gc_lease_takeover_failed", "error", err)
			return false, err
		}
		logger.Info("gc_lease_taken_over", "path", l.path, "stale_owner", existing.Owner)
		return true, nil
	}
	os.Remove(tmp)
	return false, nil
}

func (l *fileLease) Renew(owner string, ttl time.Duration) error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return err
	}
	var existing leaseFile
	if err := json.Unmarshal(data, &existing); err != nil {
		return err
	}
	if existing.Owner != owner {
		return fmt.Errorf("not owner")
	}
	existing.Expires = timeutil.Now().Add(ttl).Format(time.RFC3339)
	b, _ := json.Marshal(existing)
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, l.path)
}

func (l *fileLease) Release(owner string) error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return err
	}
	var existing leaseFile
	if err := json.Unmarshal(data, &existing); err != nil {
		return err
	}
	if existing.Owner != owner {
		return fmt.Errorf("not owner")
	}
	return os.Remove(l.path)
}
