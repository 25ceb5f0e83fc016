package crm

import (
	"bytes"
	"encoding/json"
	"strings"
)

// LoginFailedSentinel is what Login_V2 puts in SessionId when the
// credentials are wrong ("failed").
const LoginFailedSentinel = "ناموفق"

// ID is an entity identifier. The service sends GUID strings for most
// entities but numbers for some, so both decode into the same type.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Scope holds the headers that scope a request to a session and company.
type Scope struct {
	Token        string
	OrgContextID string
}

// BizDomain is one company (tenant) the user belongs to. Name is the id
// that goes into the X-Bizdomain header; Title is for display.
type BizDomain struct {
	Title string `json:"Title"`
	Name  string `json:"Name"`
}

// Account links the user to a BizDomain.
type Account struct {
	Bizdomain BizDomain `json:"Bizdomain"`
}

type loginRequest struct {
	Username string  `json:"Username"`
	Password string  `json:"Password"`
	Google   *string `json:"GOOGLE"`
}

// LoginResponse is the Login_V2 answer.
type LoginResponse struct {
	SessionID string        `json:"SessionId"`
	Response  *LoginPayload `json:"Response"`
}

// LoginPayload is the user part of a login answer.
type LoginPayload struct {
	ID       ID        `json:"Id"`
	Accounts []Account `json:"Accounts"`
}

// Identity is the account/Me answer.
type Identity struct {
	ID        ID        `json:"Id"`
	UserName  string    `json:"UserName"`
	FirstName string    `json:"FirstName"`
	LastName  string    `json:"LastName"`
	Accounts  []Account `json:"Accounts"`
}

// User is one entry of the assignable user list.
type User struct {
	UserID     ID     `json:"UserId"`
	FirstName  string `json:"FirstName"`
	LastName   string `json:"LastName"`
	IsDisabled bool   `json:"IsDisabled"`
}

// ActivityType is one entry of the activity-type catalog. Duration is in minutes.
type ActivityType struct {
	ID         ID     `json:"Id"`
	Title      string `json:"Title"`
	Duration   int    `json:"Duration"`
	IsDisabled bool   `json:"IsDisabled"`
}

// Layout is the editor placement block the SaveActivity schema requires.
type Layout struct {
	Top    int `json:"top"`
	Height int `json:"height"`
	Width  int `json:"width"`
	Right  int `json:"right"`
}

// Activity is the record sent to SaveActivity.
type Activity struct {
	ActivityTypeID    ID       `json:"ActivityTypeId"`
	Title             string   `json:"Title"`
	Duration          int      `json:"Duration"`
	OwnerID           ID       `json:"OwnerId"`
	Note              string   `json:"Note"`
	DueDate           string   `json:"DueDate"`
	DoneDate          string   `json:"DoneDate"`
	DueDateType       string   `json:"DueDateType"`
	DoneDateType      string   `json:"DoneDateType"`
	RecurrenceEndDate string   `json:"RecurrenceEndDate"`
	RecurrenceType    string   `json:"RecurrenceType"`
	RecurrenceData    int      `json:"RecurrenceData"`
	RecurrenceCount   int      `json:"RecurrenceCount"`
	Notifies          []string `json:"Notifies"`
	Contacts          []string `json:"Contacts"`
	Loc               Layout   `json:"_loc"`
}

// SaveActivityRequest wraps an Activity the way the endpoint expects.
type SaveActivityRequest struct {
	Activity       Activity `json:"Activity"`
	NewAttachments []string `json:"NewAttachments"`
	SetDone        bool     `json:"SetDone"`
}

type envelope[T any] struct {
	Response T `json:"Response"`
}
