package dto

type CreateListRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
}

type AddItemRequest struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity,omitempty"`
}

type ToggleItemRequest struct {
	Checked bool `json:"checked"`
	Version int  `json:"version"`
}
