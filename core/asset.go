package core

// Asset describes a photo returned by the picker before any processing.
type Asset struct {
	URI      string `validate:"required"`
	Name     string
	Width    int    `validate:"gt=0"`
	Height   int    `validate:"gt=0"`
	ByteSize int64  `validate:"gte=0"`
	MimeType string `validate:"required"`
}

// PickResult is the picker outcome. Cancelled results carry no asset.
type PickResult struct {
	Cancelled bool
	Asset     Asset
}

// ProcessedAsset is a normalized, metadata-stripped asset ready for transfer.
type ProcessedAsset struct {
	URI      string
	Name     string
	Width    int
	Height   int
	ByteSize int64
	MimeType string

	// Data holds the encoded bytes sent to the transport.
	Data []byte
	// Preview is a small encoded thumbnail kept for display; it is the
	// buffer released under memory pressure.
	Preview []byte
	// UploadKey identifies one slot's upload across retries. Transports
	// use it to recognise an earlier attempt of the same upload.
	UploadKey string
}
