package models

// SavedSong marks a track whose audio file was downloaded and validated.
type SavedSong struct {
	ID          string `json:"id" bson:"_id"`
	Name        string `json:"name" bson:"name"`
	Artist      string `json:"artist" bson:"artist"`
	SearchQuery string `json:"search_query" bson:"search_query"`
	FileName    string `json:"file_name" bson:"file_name"`
	CreatedAt   int64  `json:"created_at" bson:"created_at"`
}
