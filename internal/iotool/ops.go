package iotool

import (
	"context"
	"errors"
	"fmt"
	"path"

	"golang.org/x/sys/unix"

	"github.com/marmos91/nsfs/internal/logger"
	"github.com/marmos91/nsfs/pkg/posix"
)

var ops = map[string]opSpec{
	"mkdir":              {"<path> [mode]", opMkdir},
	"rmdir":              {"<path>", opRmdir},
	"open":               {"<path> <flags> [mode]", opOpen},
	"close":              {"<fd>", opClose},
	"read":               {"<path> <count>", opRead},
	"pread":              {"<path> <count> <offset>", opPread},
	"write":              {"<path> <data> [count]", opWrite},
	"pwrite":             {"<path> <data> <offset>", opPwrite},
	"write_random":       {"<path> <count>", opWriteRandom},
	"truncate":           {"<path> <length>", opTruncate},
	"lseek":              {"<path> <offset> <whence>", opLseek},
	"stat":               {"<path>", opStat},
	"statx":              {"<path>", opStatx},
	"fstat":              {"<fd>", opFstat},
	"statfs":             {"<path>", opStatfs},
	"readdir":            {"<path>", opReaddir},
	"opendir":            {"<path>", opOpendir},
	"unlink":             {"<path>", opUnlink},
	"symlink":            {"<target> <linkpath>", opSymlink},
	"chdir":              {"<path>", opChdir},
	"getcwd":             {"", opGetcwd},
	"getcwd_validate":    {"<path>", opGetcwdValidate},
	"directory_validate": {"<dir> <count>", opDirectoryValidate},
	"file_compare":       {"<path_a> <path_b> <count>", opFileCompare},
}

func opMkdir(r *Runner, ctx context.Context, args []string) (Record, error) {
	if err := argc(args, 1, 2); err != nil {
		return Record{}, err
	}
	mode := uint32(0777)
	if len(args) == 2 {
		m, err := parseMode(args[1])
		if err != nil {
			return Record{}, err
		}
		mode = m
	}
	return newRecord(0, r.s.Mkdir(ctx, args[0], mode)), nil
}

func opRmdir(r *Runner, ctx context.Context, args []string) (Record, error) {
	if err := argc(args, 1, 1); err != nil {
		return Record{}, err
	}
	return newRecord(0, r.s.Rmdir(ctx, args[0])), nil
}

func opOpen(r *Runner, ctx context.Context, args []string) (Record, error) {
	if err := argc(args, 2, 3); err != nil {
		return Record{}, err
	}
	flags, err := parseFlags(args[1])
	if err != nil {
		return Record{}, err
	}
	mode := uint32(0666)
	if len(args) == 3 {
		if mode, err = parseMode(args[2]); err != nil {
			return Record{}, err
		}
	}

	fd, err := r.s.Open(ctx, args[0], flags, mode)
	return newRecord(int64(fd), err), nil
}

func opClose(r *Runner, ctx context.Context, args []string) (Record, error) {
	if err := argc(args, 1, 1); err != nil {
		return Record{}, err
	}
	fd, err := parseInt(args[0], "fd")
	if err != nil {
		return Record{}, err
	}

	if d, ok := r.dirs[int(fd)]; ok {
		delete(r.dirs, int(fd))
		return newRecord(0, r.s.Closedir(ctx, d)), nil
	}
	return newRecord(0, r.s.Close(ctx, int(fd))), nil
}

// withFile opens p, runs fn on the descriptor and closes it again. A failed
// open is reported as the record of the whole operation.
func (r *Runner) withFile(ctx context.Context, p string, flags int, fn func(fd int) Record) Record {
	fd, err := r.s.Open(ctx, p, flags, 0)
	if err != nil {
		return newRecord(-1, err)
	}
	rec := fn(fd)
	if err := r.s.Close(ctx, fd); err != nil {
		logger.Warn("iotool: close %s: %v", p, err)
	}
	return rec
}

func opRead(r *Runner, ctx context.Context, args []string) (Record, error) {
	if err := argc(args, 2, 2); err != nil {
		return Record{}, err
	}
	count, err := parseCount(args[1])
	if err != nil {
		return Record{}, err
	}

	return r.withFile(ctx, args[0], unix.O_RDONLY, func(fd int) Record {
		buf := make([]byte, count)
		n, err := r.s.Read(ctx, fd, buf)
		rec := newRecord(int64(n), err)
		if err == nil {
			rec.Buf = buf[:n]
		}
		return rec
	}), nil
}

func opPread(r *Runner, ctx context.Context, args []string) (Record, error) {
	if err := argc(args, 3, 3); err != nil {
		return Record{}, err
	}
	count, err := parseCount(args[1])
	if err != nil {
		return Record{}, err
	}
	offset, err := parseInt(args[2], "offset")
	if err != nil {
		return Record{}, err
	}

	return r.withFile(ctx, args[0], unix.O_RDONLY, func(fd int) Record {
		buf := make([]byte, count)
		n, err := r.s.Pread(ctx, fd, buf, offset)
		rec := newRecord(int64(n), err)
		if err == nil {
			rec.Buf = buf[:n]
		}
		return rec
	}), nil
}

func opWrite(r *Runner, ctx context.Context, args []string) (Record, error) {
	if err := argc(args, 2, 3); err != nil {
		return Record{}, err
	}
	data := []byte(args[1])
	if len(args) == 3 {
		count, err := parseCount(args[2])
		if err != nil {
			return Record{}, err
		}
		if count > len(data) {
			return Record{}, fmt.Errorf("%w: count %d exceeds data length %d", ErrUsage, count, len(data))
		}
		data = data[:count]
	}

	return r.withFile(ctx, args[0], unix.O_WRONLY, func(fd int) Record {
		n, err := r.s.Write(ctx, fd, data)
		return newRecord(int64(n), err)
	}), nil
}

func opPwrite(r *Runner, ctx context.Context, args []string) (Record, error) {
	if err := argc(args, 3, 3); err != nil {
		return Record{}, err
	}
	offset, err := parseInt(args[2], "offset")
	if err != nil {
		return Record{}, err
	}

	return r.withFile(ctx, args[0], unix.O_WRONLY, func(fd int) Record {
		n, err := r.s.Pwrite(ctx, fd, []byte(args[1]), offset)
		return newRecord(int64(n), err)
	}), nil
}

// randomChunk bounds each write issued by write_random.
const randomChunk = 1 << 20

func opWriteRandom(r *Runner, ctx context.Context, args []string) (Record, error) {
	if err := argc(args, 2, 2); err != nil {
		return Record{}, err
	}
	count, err := parseCount(args[1])
	if err != nil {
		return Record{}, err
	}

	return r.withFile(ctx, args[0], unix.O_WRONLY, func(fd int) Record {
		src := newRandomStream()
		buf := make([]byte, min(count, randomChunk))
		written := 0
		for {
			p := buf[:min(len(buf), count-written)]
			_, _ = src.Read(p)
			n, err := r.s.Write(ctx, fd, p)
			written += n
			if err != nil || written >= count {
				return newRecord(int64(written), err)
			}
		}
	}), nil
}

func opTruncate(r *Runner, ctx context.Context, args []string) (Record, error) {
	if err := argc(args, 2, 2); err != nil {
		return Record{}, err
	}
	length, err := parseInt(args[1], "length")
	if err != nil {
		return Record{}, err
	}
	return newRecord(0, r.s.Truncate(ctx, args[0], length)), nil
}

func opLseek(r *Runner, ctx context.Context, args []string) (Record, error) {
	if err := argc(args, 3, 3); err != nil {
		return Record{}, err
	}
	offset, err := parseInt(args[1], "offset")
	if err != nil {
		return Record{}, err
	}
	whence, err := parseWhence(args[2])
	if err != nil {
		return Record{}, err
	}

	return r.withFile(ctx, args[0], unix.O_RDONLY, func(fd int) Record {
		pos, err := r.s.Lseek(ctx, fd, offset, whence)
		return newRecord(pos, err)
	}), nil
}

func statRecord(st *posix.Stat, err error) Record {
	rec := newRecord(0, err)
	if err == nil {
		rec.Stat = st
	}
	return rec
}

func opStat(r *Runner, ctx context.Context, args []string) (Record, error) {
	if err := argc(args, 1, 1); err != nil {
		return Record{}, err
	}
	return statRecord(r.s.Stat(ctx, args[0])), nil
}

func opStatx(r *Runner, ctx context.Context, args []string) (Record, error) {
	if err := argc(args, 1, 1); err != nil {
		return Record{}, err
	}
	return statRecord(r.s.Statx(ctx, args[0])), nil
}

func opFstat(r *Runner, ctx context.Context, args []string) (Record, error) {
	if err := argc(args, 1, 1); err != nil {
		return Record{}, err
	}
	fd, err := parseInt(args[0], "fd")
	if err != nil {
		return Record{}, err
	}
	return statRecord(r.s.Fstat(ctx, int(fd))), nil
}

func opStatfs(r *Runner, ctx context.Context, args []string) (Record, error) {
	if err := argc(args, 1, 1); err != nil {
		return Record{}, err
	}
	st, err := r.s.Statfs(ctx, args[0])
	rec := newRecord(0, err)
	if err == nil {
		rec.Statfs = st
	}
	return rec, nil
}

func opReaddir(r *Runner, ctx context.Context, args []string) (Record, error) {
	if err := argc(args, 1, 1); err != nil {
		return Record{}, err
	}
	entries, err := r.s.Readdir(ctx, args[0])
	rec := newRecord(int64(len(entries)), err)
	if err == nil {
		rec.Dirents = entries
	}
	return rec, nil
}

func opOpendir(r *Runner, ctx context.Context, args []string) (Record, error) {
	if err := argc(args, 1, 1); err != nil {
		return Record{}, err
	}
	d, err := r.s.Opendir(ctx, args[0])
	if err != nil {
		return newRecord(-1, err), nil
	}
	r.dirs[d.FD()] = d
	return newRecord(int64(d.FD()), nil), nil
}

func opUnlink(r *Runner, ctx context.Context, args []string) (Record, error) {
	if err := argc(args, 1, 1); err != nil {
		return Record{}, err
	}
	return newRecord(0, r.s.Unlink(ctx, args[0])), nil
}

func opSymlink(r *Runner, ctx context.Context, args []string) (Record, error) {
	if err := argc(args, 2, 2); err != nil {
		return Record{}, err
	}
	return newRecord(0, r.s.Symlink(ctx, args[0], args[1])), nil
}

func opChdir(r *Runner, ctx context.Context, args []string) (Record, error) {
	if err := argc(args, 1, 1); err != nil {
		return Record{}, err
	}
	return newRecord(0, r.s.Chdir(ctx, args[0])), nil
}

func opGetcwd(r *Runner, _ context.Context, args []string) (Record, error) {
	if err := argc(args, 0, 0); err != nil {
		return Record{}, err
	}
	rec := newRecord(0, nil)
	rec.Path = r.s.Getcwd()
	return rec, nil
}

// opGetcwdValidate changes into path and reports the resulting working
// directory, exercising resolution of ".." across the mount boundary.
func opGetcwdValidate(r *Runner, ctx context.Context, args []string) (Record, error) {
	if err := argc(args, 1, 1); err != nil {
		return Record{}, err
	}
	if err := r.s.Chdir(ctx, args[0]); err != nil {
		return newRecord(-1, err), nil
	}
	rec := newRecord(0, nil)
	rec.Path = r.s.Getcwd()
	return rec, nil
}

// opDirectoryValidate creates count new empty files in dir and returns the
// number of entries readdir reports afterwards.
func opDirectoryValidate(r *Runner, ctx context.Context, args []string) (Record, error) {
	if err := argc(args, 2, 2); err != nil {
		return Record{}, err
	}
	count, err := parseCount(args[1])
	if err != nil {
		return Record{}, err
	}
	dir := args[0]

	entries, err := r.s.Readdir(ctx, dir)
	if err != nil {
		return newRecord(-1, err), nil
	}

	next := len(entries)
	for created := 0; created < count; next++ {
		p := path.Join(dir, fmt.Sprintf("file_%d", next))
		fd, err := r.s.Open(ctx, p, unix.O_CREAT|unix.O_EXCL|unix.O_WRONLY, 0644)
		if errors.Is(err, unix.EEXIST) {
			continue
		}
		if err != nil {
			return newRecord(-1, err), nil
		}
		if err := r.s.Close(ctx, fd); err != nil {
			return newRecord(-1, err), nil
		}
		created++
	}

	entries, err = r.s.Readdir(ctx, dir)
	return newRecord(int64(len(entries)), err), nil
}

// opFileCompare returns 0 when the first count bytes of both files are
// identical and 1 when they differ.
func opFileCompare(r *Runner, ctx context.Context, args []string) (Record, error) {
	if err := argc(args, 3, 3); err != nil {
		return Record{}, err
	}
	n, err := parseInt(args[2], "count")
	if err != nil {
		return Record{}, err
	}

	equal, err := r.s.CompareFiles(ctx, args[0], args[1], n)
	if err != nil {
		return newRecord(-1, err), nil
	}
	if !equal {
		return newRecord(1, nil), nil
	}
	return newRecord(0, nil), nil
}
