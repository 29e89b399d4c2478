package integration

import (
	"fmt"
	"time"
)

// TestGoogleUser generates unique test user identifiers using timestamp
func TestGoogleUser(suffix string) (uid, email string) {
	ts := time.Now().UnixNano()
	uid = fmt.Sprintf("google-%d-%s", ts, suffix)
	email = fmt.Sprintf("test-%d-%s@example.com", ts, suffix)
	return
}

// ValidOrderBody returns a complete order form submission
func ValidOrderBody() map[string]string {
	return map[string]string{
		"first_name":        "Ali",
		"last_name":         "Valiyev",
		"email":             "ali@example.com",
		"phone":             "+998901234567",
		"telegram_username": "alivaliyev",
		"comment":           "PUBG uchun logotip kerak",
		"selected_game":     "pubg",
		"selected_design":   "logo",
	}
}

// DeclaredTashkent returns a declared location matching the fake
// geocoder's default Tashkent address
func DeclaredTashkent() map[string]any {
	return map[string]any{
		"country": "Uzbekistan",
		"region":  "Tashkent",
		"city":    "Tashkent",
		"lat":     41.311081,
		"lng":     69.240562,
	}
}
