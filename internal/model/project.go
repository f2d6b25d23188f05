package model

// Color is a symbolic column color tag. The UI maps it to a terminal color.
type Color string

const (
	ColorGray   Color = "gray"
	ColorBlue   Color = "blue"
	ColorYellow Color = "yellow"
	ColorPurple Color = "purple"
	ColorGreen  Color = "green"
	ColorRed    Color = "red"
	ColorOrange Color = "orange"
)

// Colors lists the selectable column colors in palette order.
var Colors = []Color{ColorGray, ColorBlue, ColorYellow, ColorPurple, ColorGreen, ColorRed, ColorOrange}

// Column is one lane of the board in status view.
type Column struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Color      Color  `json:"color"`
	Position   int    `json:"position"`
	IsDefault  bool   `json:"isDefault,omitempty"`
	IsTerminal bool   `json:"isTerminal,omitempty"`
}

type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
	ProjectOnHold    ProjectStatus = "on-hold"
	ProjectCancelled ProjectStatus = "cancelled"
)

// Project groups tasks under a team and its own column set.
type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Type        string        `json:"type,omitempty"`
	Status      ProjectStatus `json:"status"`
	TeamMembers []string      `json:"teamMembers"`
	Columns     []Column      `json:"columns"`
}

// StatusLookup is an organization-wide task status entry.
type StatusLookup struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Color      Color  `json:"color,omitempty"`
	SortOrder  int    `json:"sortOrder"`
	Disabled   bool   `json:"disabled,omitempty"`
	IsTerminal bool   `json:"isTerminal,omitempty"`
}

// User is an entry of the user directory.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

type NotificationType string

const (
	NotifyInfo       NotificationType = "info"
	NotifyAssignment NotificationType = "assignment"
	NotifyCompletion NotificationType = "completion"
)

// Notification is a message delivered to a user by the backend.
type Notification struct {
	UserID      string           `json:"userId"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Type        NotificationType `json:"type"`
	Link        string           `json:"link,omitempty"`
}
