package web

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

const flashCookie = "bookhub_flash"

const (
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

type Flash struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

func setFlash(c *gin.Context, level, msg string) {
	b, err := json.Marshal(Flash{Level: level, Message: msg})
	if err != nil {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookie, base64.RawURLEncoding.EncodeToString(b), 60, "/", "", false, true)
}

// popFlash returns the pending flash message and clears it.
func popFlash(c *gin.Context) (Flash, bool) {
	raw, err := c.Cookie(flashCookie)
	if err != nil || raw == "" {
		return Flash{}, false
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookie, "", -1, "/", "", false, true)

	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return Flash{}, false
	}
	var f Flash
	if err := json.Unmarshal(b, &f); err != nil {
		return Flash{}, false
	}
	return f, true
}
