package validation

import "testing"

type mockTicket struct {
	Key     string
	Subject string
	Channel string
}

func (m mockTicket) GetKey() string     { return m.Key }
func (m mockTicket) GetSubject() string { return m.Subject }
func (m mockTicket) GetChannel() string { return m.Channel }

func TestValidateTicket(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		ticket    mockTicket
		wantField string
	}{
		{
			name:   "valid",
			ticket: mockTicket{Key: "cx_Name", Subject: "test email", Channel: "email"},
		},
		{
			name:      "missing key",
			ticket:    mockTicket{Subject: "test email", Channel: "email"},
			wantField: "key",
		},
		{
			name:      "missing channel",
			ticket:    mockTicket{Key: "cx_Name", Subject: "test email"},
			wantField: "cx_channel",
		},
		{
			name:      "missing subject",
			ticket:    mockTicket{Key: "cx_Name", Channel: "email"},
			wantField: "cx_subject",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			checkField(t, ValidateTicket(tt.ticket), tt.wantField)
		})
	}
}
