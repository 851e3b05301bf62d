package domain

// Stats is the aggregate view across every collection tracked by the registry.
type Stats struct {
	Collections int     `json:"collections"`
	FileSize    int64   `json:"file_size"`
	Objects     int64   `json:"objects"`
	FileSizeMb  float64 `json:"file_size_mb"`
}
