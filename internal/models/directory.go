package models

// Reference data owned by the actor, customer and activity directories. The
// task core only reads these rows, except for the status flag flipped by a
// deactivation.

const (
	StatusActive   = "A"
	StatusObsolete = "O"
)

// Actor is an auditor, reviewer or administrator.
type Actor struct {
	ID     uint64 `gorm:"primarykey" json:"id"`
	Name   string `gorm:"type:varchar(255);not null" json:"name"`
	Email  string `gorm:"type:varchar(255)" json:"email"`
	RoleID int    `gorm:"not null" json:"role_id"`
	Status string `gorm:"type:varchar(1);not null;default:'A'" json:"status"`
}

func (a Actor) Active() bool {
	return a.Status == StatusActive
}

// Customer is the client on whose behalf tasks are performed.
type Customer struct {
	ID     uint64 `gorm:"primarykey" json:"id"`
	Name   string `gorm:"type:varchar(255);not null" json:"name"`
	Email  string `gorm:"type:varchar(255)" json:"email"`
	Status string `gorm:"type:varchar(1);not null;default:'A'" json:"status"`
}

func (c Customer) Active() bool {
	return c.Status == StatusActive
}

// SubActivity is one entry of an activity's subtask template.
type SubActivity struct {
	Name          string  `json:"name"`
	Description   string  `json:"description,omitempty"`
	EstimatedTime float64 `json:"estimated_time,omitempty"`
}

// Activity is a catalog entry that tasks are instantiated from.
type Activity struct {
	ID            uint64        `gorm:"primarykey" json:"id"`
	Name          string        `gorm:"type:varchar(255);not null" json:"name"`
	Description   string        `gorm:"type:text" json:"description"`
	Criticality   Criticality   `gorm:"type:varchar(20);not null;default:'Low'" json:"criticality"`
	StandardTime  float64       `json:"standard_time"`
	Frequency     int           `json:"frequency"`
	Status        string        `gorm:"type:varchar(1);not null;default:'A'" json:"status"`
	SubActivities []SubActivity `gorm:"serializer:json;type:text" json:"sub_activities"`
}

func (a Activity) Active() bool {
	return a.Status == StatusActive
}
