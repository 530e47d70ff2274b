//go:build linux || darwin || freebsd

package device

import "golang.org/x/sys/unix"

// diskSpace returns the bytes available to unprivileged users and the filesystem size for path.
func diskSpace(path string) (free, total uint64) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, 0
	}
	bsize := uint64(st.Bsize)
	return uint64(st.Bavail) * bsize, uint64(st.Blocks) * bsize
}
