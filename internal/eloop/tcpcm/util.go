package tcpcm

import (
	"context"
	"strconv"

	"golang.org/x/sys/unix"
)

func contextBackground() context.Context { return context.Background() }

func itoa(n int) string { return strconv.Itoa(n) }

func closeFD(fd int) { unix.Close(fd) }
