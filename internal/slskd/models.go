package slskd

import "strings"

// File is a file descriptor as returned in search responses. The same value
// is echoed back when enqueuing a download.
type File struct {
	Filename   string `json:"filename"`
	Size       int64  `json:"size"`
	Code       int    `json:"code,omitempty"`
	Extension  string `json:"extension,omitempty"`
	BitRate    int    `json:"bitRate,omitempty"`
	BitDepth   int    `json:"bitDepth,omitempty"`
	SampleRate int    `json:"sampleRate,omitempty"`
	Length     int    `json:"length,omitempty"`
	IsLocked   bool   `json:"isLocked,omitempty"`
}

// SearchResponse is one peer's reply to a search.
type SearchResponse struct {
	Username          string `json:"username"`
	Token             int64  `json:"token"`
	HasFreeUploadSlot bool   `json:"hasFreeUploadSlot"`
	UploadSpeed       int64  `json:"uploadSpeed"`
	QueueLength       int64  `json:"queueLength"`
	FileCount         int    `json:"fileCount"`
	Files             []File `json:"files"`
	LockedFiles       []File `json:"lockedFiles,omitempty"`
}

// SearchState is the summary returned by GET /searches/{id}.
type SearchState struct {
	ID              string `json:"id"`
	SearchText      string `json:"searchText"`
	State           string `json:"state"`
	IsComplete      bool   `json:"isComplete"`
	FileCount       int    `json:"fileCount"`
	LockedFileCount int    `json:"lockedFileCount"`
	ResponseCount   int    `json:"responseCount"`
	StartedAt       string `json:"startedAt,omitempty"`
	EndedAt         string `json:"endedAt,omitempty"`
}

type searchRequest struct {
	ID         string `json:"id"`
	SearchText string `json:"searchText"`
}

type enqueueRequest struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// TransferUser groups a peer's transfers by remote directory.
type TransferUser struct {
	Username    string              `json:"username"`
	Directories []TransferDirectory `json:"directories"`
}

// TransferDirectory is one remote directory within a TransferUser.
type TransferDirectory struct {
	Directory string     `json:"directory"`
	FileCount int        `json:"fileCount"`
	Files     []Transfer `json:"files"`
}

// Transfer is the state of a single queued or running file transfer.
type Transfer struct {
	ID               string  `json:"id"`
	Username         string  `json:"username"`
	Direction        string  `json:"direction"`
	Filename         string  `json:"filename"`
	Size             int64   `json:"size"`
	State            string  `json:"state"`
	BytesTransferred int64   `json:"bytesTransferred"`
	BytesRemaining   int64   `json:"bytesRemaining"`
	PercentComplete  float64 `json:"percentComplete"`
	AverageSpeed     float64 `json:"averageSpeed"`
}

// IsDownload reports whether the transfer is incoming.
func (t Transfer) IsDownload() bool {
	return strings.EqualFold(t.Direction, "Download")
}

// ApplicationState is the subset of GET /application the bot uses.
type ApplicationState struct {
	Version struct {
		Full    string `json:"full"`
		Current string `json:"current"`
	} `json:"version"`
	Server struct {
		Address     string `json:"address"`
		State       string `json:"state"`
		IsConnected bool   `json:"isConnected"`
		IsLoggedIn  bool   `json:"isLoggedIn"`
	} `json:"server"`
	User struct {
		Username string `json:"username"`
	} `json:"user"`
}
