package domain

// Employee is the slice of the external directory this subsystem needs:
// just enough identity to render "sender" blocks and push titles.
type Employee struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
