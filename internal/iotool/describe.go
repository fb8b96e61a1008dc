package iotool

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
)

// describe renders rec as one human readable line, e.g.
//
//	mkdir("/tmp/nsfs/a", "0755") = -1, errno: 17 [EEXIST]
func describe(args []string, rec Record) string {
	var b strings.Builder

	quoted := make([]string, 0, len(args)-1)
	for _, a := range args[1:] {
		if len(a) > 64 {
			a = a[:61] + "..."
		}
		quoted = append(quoted, fmt.Sprintf("%q", a))
	}
	fmt.Fprintf(&b, "%s(%s) = %d", args[0], strings.Join(quoted, ", "), rec.Retval)

	if rec.Failed() {
		fmt.Fprintf(&b, ", errno: %d [%s]", int(rec.Errno), rec.Symbol)
		return b.String()
	}

	switch {
	case rec.Stat != nil:
		st := rec.Stat
		fmt.Fprintf(&b, ", ino=%d mode=%#o nlink=%d uid=%d gid=%d size=%s",
			st.Ino, st.Mode, st.Nlink, st.UID, st.GID, humanize.IBytes(uint64(st.Size)))
	case rec.Statfs != nil:
		st := rec.Statfs
		bsize := uint64(st.Bsize)
		fmt.Fprintf(&b, ", size=%s free=%s files=%s",
			humanize.IBytes(st.Blocks*bsize),
			humanize.IBytes(st.Bfree*bsize),
			humanize.Comma(int64(st.Files)))
	case rec.Dirents != nil:
		names := make([]string, len(rec.Dirents))
		for i, e := range rec.Dirents {
			names[i] = e.Name
			if e.Type == unix.DT_DIR {
				names[i] += "/"
			}
		}
		fmt.Fprintf(&b, ", [%s]", strings.Join(names, " "))
	case rec.Buf != nil:
		fmt.Fprintf(&b, ", %s read", humanize.IBytes(uint64(len(rec.Buf))))
	case rec.Path != "":
		fmt.Fprintf(&b, ", cwd=%s", rec.Path)
	}
	return b.String()
}
