package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/Aman-CERP/amanrag/internal/profiling"
)

// MinDiskSpaceBytes is the free space required where the index is written.
const MinDiskSpaceBytes = 100 * 1024 * 1024

// MinFileDescriptors is the recommended open file limit.
const MinFileDescriptors = 1024

// DiskSpace checks the free space on the filesystem holding path. The path
// need not exist yet; its nearest existing ancestor is measured.
func DiskSpace(path string) Check {
	return func(context.Context) CheckResult {
		result := CheckResult{Name: "disk_space", Required: true}

		dir := existingAncestor(path)
		var stat syscall.Statfs_t
		if err := syscall.Statfs(dir, &stat); err != nil {
			result.Status = StatusFail
			result.Message = fmt.Sprintf("failed to check disk space: %v", err)
			return result
		}

		available := stat.Bavail * uint64(stat.Bsize)
		result.Message = fmt.Sprintf("%s free (minimum: %s)",
			profiling.FormatBytes(available), profiling.FormatBytes(MinDiskSpaceBytes))
		result.Details = dir
		result.Status = StatusPass
		if available < MinDiskSpaceBytes {
			result.Status = StatusFail
		}
		return result
	}
}

// WritePermissions checks that a file can be created next to path. As with
// DiskSpace, the nearest existing ancestor is tested.
func WritePermissions(path string) Check {
	return func(context.Context) CheckResult {
		result := CheckResult{Name: "write_permissions", Required: true}

		dir := existingAncestor(path)
		result.Details = dir
		f, err := os.CreateTemp(dir, ".amanrag-preflight-*")
		if err != nil {
			result.Status = StatusFail
			result.Message = fmt.Sprintf("cannot write to %s: %v", dir, err)
			return result
		}
		_ = f.Close()
		_ = os.Remove(f.Name())

		result.Status = StatusPass
		result.Message = "OK"
		return result
	}
}

// FileDescriptors checks the soft open-file limit. A low limit is a warning.
func FileDescriptors() Check {
	return func(context.Context) CheckResult {
		result := CheckResult{Name: "file_descriptors"}

		var limit syscall.Rlimit
		if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit); err != nil {
			result.Status = StatusWarn
			result.Message = fmt.Sprintf("failed to check file descriptor limit: %v", err)
			return result
		}

		result.Message = fmt.Sprintf("%d (minimum: %d)", limit.Cur, MinFileDescriptors)
		if limit.Cur < MinFileDescriptors {
			result.Status = StatusWarn
			result.Details = "Run 'ulimit -n 10240' to increase the limit"
			return result
		}
		result.Status = StatusPass
		return result
	}
}

// existingAncestor returns path or its closest existing parent.
func existingAncestor(path string) string {
	dir := filepath.Clean(path)
	for {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
