package core

import "errors"

// ErrNotConnected is returned by senders whose transport is not open.
var ErrNotConnected = errors.New("not connected")
