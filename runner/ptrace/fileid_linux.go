package ptrace

import (
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/zqzqsb/faultinj/fault"
)

// procFileID 通过 /proc/<pid>/fd/<fd> 读取被跟踪进程的描述符指向的文件
func procFileID(owner, fd int) (fault.FileID, error) {
	var st unix.Stat_t
	path := "/proc/" + strconv.Itoa(owner) + "/fd/" + strconv.Itoa(fd)
	if err := unix.Stat(path, &st); err != nil {
		return fault.FileID{}, err
	}
	return fault.FileID{Dev: uint64(st.Dev), Ino: st.Ino}, nil
}
