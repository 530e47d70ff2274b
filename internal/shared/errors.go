package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Device session errors (fatal to a run)
	ErrDeviceNotFound = fmt.Errorf("device not found")
	ErrNoStorageArea  = fmt.Errorf("device reports no storage area")
	ErrFolderNotFound = fmt.Errorf("folder not found on device")
	ErrDeviceClosed   = fmt.Errorf("device handle is closed")

	// Per-item errors
	ErrEncodeFailed   = fmt.Errorf("encode failed")
	ErrOutputName     = fmt.Errorf("could not derive output filename")
	ErrTransferFailed = fmt.Errorf("transfer failed")
	ErrCancelled      = fmt.Errorf("operation cancelled")

	// Playlist resolution errors
	ErrPlaylistNotFound = fmt.Errorf("playlist not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
