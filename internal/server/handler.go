package server

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/aesdlog/aesdlogd/internal/constants"
	"github.com/aesdlog/aesdlogd/internal/logging"
	"github.com/aesdlog/aesdlogd/internal/sink"

	aesdlog "github.com/aesdlog/aesdlogd"
)

// HandleConn implements one Connection Handler iteration (spec.md §4.D).
// It reads at most one line from conn: if that line is a well-formed
// AESDCHAR_IOCSEEKTO directive it is routed to the Device Surface and never
// touches the sink; otherwise it is appended to the sink under sink_lock and
// the sink's full current content is streamed back to the peer.
//
// The receive buffer is sized to constants.RecvBufferSize, matching the
// fixed-size receive budget spec.md describes; unlike a raw chunked read,
// bufio.Reader lets the handler inspect a complete line before deciding
// whether it is the ioctl directive, which a naive chunk-by-chunk append
// could not do without writing speculative bytes to the sink first.
func HandleConn(conn net.Conn, s sink.Interface, dev *aesdlog.Device, logger *logging.Logger) error {
	defer conn.Close()

	reader := bufio.NewReaderSize(conn, constants.RecvBufferSize)
	line, readErr := reader.ReadBytes('\n')
	if len(line) == 0 && readErr != nil && readErr != io.EOF {
		return aesdlog.WrapError("handle_conn: read", readErr)
	}

	if cmd, offset, ok := parseSeekDirective(line); ok {
		return handleIoctl(conn, dev, logger, cmd, offset)
	}

	s.Lock()
	appendErr := s.Append(line)
	var content []byte
	var readBackErr error
	if appendErr == nil {
		content, readBackErr = s.ReadAll()
	}
	s.Unlock()

	if appendErr != nil {
		return aesdlog.WrapError("handle_conn: append", appendErr)
	}
	if readBackErr != nil {
		return aesdlog.WrapError("handle_conn: read back", readBackErr)
	}

	if err := writeAll(conn, content); err != nil {
		return aesdlog.WrapError("handle_conn: write", err)
	}
	return nil
}

// parseSeekDirective reports whether line is a complete
// "AESDCHAR_IOCSEEKTO:<cmd>,<offset>\n" directive, and if so decodes it.
// Malformed input after the prefix (missing comma, non-decimal fields,
// missing trailing newline) is treated as ordinary data rather than a
// directive, so it falls through to the normal append-and-echo path.
func parseSeekDirective(line []byte) (cmd, offset uint32, ok bool) {
	if !bytes.HasPrefix(line, []byte(constants.SeekToPrefix)) || !bytes.HasSuffix(line, []byte("\n")) {
		return 0, 0, false
	}
	body := strings.TrimSuffix(strings.TrimPrefix(string(line), constants.SeekToPrefix), "\n")
	parts := strings.SplitN(body, ",", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	c, err1 := strconv.ParseUint(parts[0], 10, 32)
	o, err2 := strconv.ParseUint(parts[1], 10, 32)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return uint32(c), uint32(o), true
}

// handleIoctl forwards a decoded SEEK_TO directive to the Device Surface and
// streams back everything from the resulting position to end-of-log. A
// rejected seek (out-of-range cmd or offset) logs and closes the connection
// without writing anything back; the sink is never touched.
func handleIoctl(conn net.Conn, dev *aesdlog.Device, logger *logging.Logger, cmd, offset uint32) error {
	h := dev.Open()
	if err := h.Ioctl(aesdlog.SeekTo{Cmd: cmd, Offset: offset}); err != nil {
		if logger != nil {
			logger.Warnf("ioctl seek rejected: cmd=%d offset=%d err=%v", cmd, offset, err)
		}
		return nil
	}
	out, err := h.ReadAll()
	if err != nil {
		return aesdlog.WrapError("handle_conn: ioctl read", err)
	}
	return writeAll(conn, out)
}

// writeAll streams data back to conn in RecvBufferSize-sized chunks.
func writeAll(conn net.Conn, data []byte) error {
	for len(data) > 0 {
		chunk := data
		if len(chunk) > constants.RecvBufferSize {
			chunk = chunk[:constants.RecvBufferSize]
		}
		n, err := conn.Write(chunk)
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}
