package file

import "errors"

// ErrCorrupted is returned when the stored checksum does not match the
// records found in a queue file.
var ErrCorrupted = errors.New("queue file is corrupted")

// ErrUndecodable is returned by Eject when a stored record could not be
// decoded. The record is dropped from the queue.
var ErrUndecodable = errors.New("queue record is undecodable")
