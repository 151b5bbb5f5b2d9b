// Package preflight runs environment and capability checks before an index
// is built or queried.
//
// A Checker runs an ordered list of checks. System checks (disk space,
// write permissions, file descriptor limit) live here; callers add checks
// for their own capabilities with Add:
//
//	checker := preflight.New(preflight.WithOutput(os.Stdout))
//	checker.Add(preflight.DiskSpace(dir), preflight.WritePermissions(dir))
//	results := checker.Run(ctx)
//	if preflight.HasCriticalFailures(results) {
//	    // handle failures
//	}
package preflight
