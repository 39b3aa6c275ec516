package formatter

import (
	"encoding/json"

	"github.com/go-telegram/bot/models"

	appmodels "github.com/mixelka/replywatch/pkg/models"
)

// BuildStatusKeyboard creates the inline keyboard under a status message.
// A stopped automation only offers a refresh.
func BuildStatusKeyboard(state appmodels.RunState) *models.InlineKeyboardMarkup {
	row := []models.InlineKeyboardButton{
		{
			Text:         "Refresh",
			CallbackData: EncodeCallback(appmodels.CallbackData{Action: appmodels.CallbackRefresh}),
		},
	}

	if state != appmodels.StateStopped {
		row = append(row, models.InlineKeyboardButton{
			Text:         "Stop",
			CallbackData: EncodeCallback(appmodels.CallbackData{Action: appmodels.CallbackStop}),
		})
	}

	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{row},
	}
}

// EncodeCallback encodes callback data to string
func EncodeCallback(data appmodels.CallbackData) string {
	b, _ := json.Marshal(data)
	return string(b)
}

// DecodeCallback decodes callback data from string
func DecodeCallback(data string) (appmodels.CallbackData, error) {
	var cb appmodels.CallbackData
	err := json.Unmarshal([]byte(data), &cb)
	return cb, err
}
