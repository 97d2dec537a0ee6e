package protocol

import "strings"

// Verbs accepted after the handshake.
const (
	VerbRead  = "READ"
	VerbWrite = "WRITE"
)

// HelloPrefix starts the first line every client must send.
const HelloPrefix = "HELLO"

// Reply lines, without the trailing newline (WriteLine appends it).
const (
	MsgOK                = "OK"
	MsgHandshakeRequired = "ERR Handshake required"
	MsgBadHeader         = "ERR bad header"
	MsgInvalidFilename   = "ERR invalid filename"
	MsgUnknownCommand    = "ERR unknown command. Use READ or WRITE"
	MsgFileNotFound      = "ERR file not found"
	MsgCannotOpen        = "ERR cannot open file for writing"
	MsgFileReceived      = "File Received by server"
	MsgServerShutdown    = "SERVER_SHUTDOWN"

	notifyBusyPrefix = "NOTIFY BUSY "
	okWritePrefix    = "OK WRITE "
	errPrefix        = "ERR "
)

// Hello builds the handshake line for a client identifier. An empty id
// yields a bare "HELLO".
func Hello(id string) string {
	if id == "" {
		return HelloPrefix
	}
	return HelloPrefix + " " + id
}

// ParseHello reports whether line is a handshake and returns the trimmed
// client identifier that follows the prefix.
func ParseHello(line string) (string, bool) {
	if !strings.HasPrefix(line, HelloPrefix) {
		return "", false
	}
	return strings.TrimSpace(line[len(HelloPrefix):]), true
}

// NotifyBusy builds the busy notification for name.
func NotifyBusy(name string) string { return notifyBusyPrefix + name }

// OKWrite builds the write-grant line for name.
func OKWrite(name string) string { return okWritePrefix + name }

// ParseNotifyBusy returns the filename carried by a busy notification.
func ParseNotifyBusy(line string) (string, bool) {
	return strings.CutPrefix(line, notifyBusyPrefix)
}

// ParseOKWrite returns the filename carried by a write grant.
func ParseOKWrite(line string) (string, bool) {
	return strings.CutPrefix(line, okWritePrefix)
}

// IsError reports whether line is an ERR reply.
func IsError(line string) bool {
	return strings.HasPrefix(line, errPrefix)
}
