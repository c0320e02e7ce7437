package notify

import (
	"testing"

	"github.com/gatherly-dev/gatherly/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderRSVPConfirmation(t *testing.T) {
	alice := &models.User{ID: uuid.New(), Username: "alice", FirstName: "Alice", Email: "alice@example.com"}
	data := map[string]interface{}{
		"event_name": "Jazz Night",
		"event_date": "2024-06-20",
		"event_time": "18:30",
		"location":   "Blue Note",
	}

	n, err := Render(models.NotificationRSVPConfirmation, alice, data, "")
	require.NoError(t, err)
	assert.Equal(t, "RSVP Confirmation", n.Subject)
	assert.Equal(t, "alice@example.com", n.Recipient)
	assert.Equal(t, alice.ID, n.UserID)
	assert.Equal(t, models.NotificationStatusPending, n.Status)
	assert.Contains(t, n.Body, "Hello Alice,")
	assert.Contains(t, n.Body, "You have successfully RSVP'd to Jazz Night.")
	assert.Contains(t, n.Body, "Date: 2024-06-20")
	assert.Contains(t, n.Body, "Location: Blue Note")
}

func TestRenderActivation(t *testing.T) {
	bob := &models.User{ID: uuid.New(), Username: "bob", Email: "bob@example.com"}
	data := map[string]interface{}{"user_id": bob.ID.String(), "token": "tok"}

	n, err := Render(models.NotificationAccountActivation, bob, data, "https://gatherly.example/")
	require.NoError(t, err)
	assert.Equal(t, "Activate your account", n.Subject)
	assert.Contains(t, n.Body, "Hello bob,")
	assert.Contains(t, n.Body, "https://gatherly.example/users/activate/"+bob.ID.String()+"/tok/")
}

func TestRenderErrors(t *testing.T) {
	u := &models.User{ID: uuid.New(), Username: "x", Email: "x@example.com"}

	_, err := Render("birthday", u, nil, "")
	assert.Error(t, err)

	_, err = Render(models.NotificationRSVPConfirmation, &models.User{Username: "noemail"}, nil, "")
	assert.Error(t, err)

	_, err = Render(models.NotificationRSVPConfirmation, nil, nil, "")
	assert.Error(t, err)
}
