package usersfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// lockFile opens the companion lock file and takes an exclusive whole-file
// fcntl write lock on it, blocking until the lock is available. Interrupted
// waits are retried transparently. Closing the returned file releases the
// lock.
func lockFile(path string) (*os.File, error) {
	fh, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileCreate, err)
	}

	flock := unix.Flock_t{
		Type:   unix.F_WRLCK,
		Whence: io.SeekStart,
	}
	for {
		err := unix.FcntlFlock(fh.Fd(), unix.F_SETLKW, &flock)
		if err == nil {
			return fh, nil
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		fh.Close()
		return nil, fmt.Errorf("%w: %v", ErrFileLock, err)
	}
}

// replaceRecords streams every line of in to out. Lines whose username token
// does not match are copied verbatim, byte for byte; each matching line is
// replaced with a freshly formatted record carrying the new counter, code and
// timestamp. Type, password and secret are taken from the line itself so
// that duplicate records keep their own fields.
func replaceRecords(in io.Reader, out io.Writer, username, newOTP, timestamp string, newMovingFactor uint64) error {
	reader := bufio.NewReader(in)
	for {
		line, readErr := reader.ReadString('\n')
		if line != "" {
			fields := strings.Fields(line)
			if len(fields) >= 2 && fields[1] == username {
				password := "-"
				if len(fields) > 2 {
					password = fields[2]
				}
				secret := "-"
				if len(fields) > 3 {
					secret = fields[3]
				}
				_, err := fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
					fields[0], username, password, secret,
					newMovingFactor, newOTP, timestamp)
				if err != nil {
					return fmt.Errorf("%w: %v", ErrWrite, err)
				}
			} else if _, err := io.WriteString(out, line); err != nil {
				return fmt.Errorf("%w: %v", ErrWrite, err)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

// persist rewrites the credential file at path, replacing username's record,
// under the cross-process lock. The already-open source file is rewound and
// re-scanned; the new content is staged in <path>.new and renamed into place
// only after it is fully written, so readers observe either the old or the
// new file in its entirety.
func persist(in *os.File, path, username, newOTP, timestamp string, newMovingFactor uint64) error {
	if _, err := in.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %v", ErrFileSeek, err)
	}

	lockPath := path + ".lock"
	lockfh, err := lockFile(lockPath)
	if err != nil {
		return err
	}

	newPath := path + ".new"
	out, err := os.OpenFile(newPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		lockfh.Close()
		os.Remove(lockPath)
		return fmt.Errorf("%w: %v", ErrFileCreate, err)
	}

	werr := replaceRecords(in, out, username, newOTP, timestamp, newMovingFactor)
	if cerr := out.Close(); cerr != nil && werr == nil {
		werr = fmt.Errorf("%w: %v", ErrWrite, cerr)
	}
	if werr != nil {
		// Leave the live file untouched on a failed rewrite.
		os.Remove(newPath)
		lockfh.Close()
		os.Remove(lockPath)
		return werr
	}

	// Closing the lock file releases the fcntl lock.
	lockfh.Close()

	renameErr := os.Rename(newPath, path)
	unlinkErr := os.Remove(lockPath)

	// Both outcomes are reported, rename failure first.
	if renameErr != nil {
		if unlinkErr != nil {
			return fmt.Errorf("%w: %v (lock file removal also failed: %v)", ErrFileRename, renameErr, unlinkErr)
		}
		return fmt.Errorf("%w: %v", ErrFileRename, renameErr)
	}
	if unlinkErr != nil {
		return fmt.Errorf("%w: %v", ErrFileUnlink, unlinkErr)
	}
	return nil
}
