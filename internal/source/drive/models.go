package drive

// ListResponse represents the document API folder listing.
type ListResponse struct {
	Files         []File `json:"files"`
	NextPageToken string `json:"nextPageToken"`
}

type File struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	ModifiedTime string `json:"modifiedTime"`
	Trashed      bool   `json:"trashed"`
}
