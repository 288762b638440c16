package watchlist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"CryptoLens/internal/model"
)

// Entry is the last observed analysis for one pair and timeframe.
type Entry struct {
	Pair           model.AssetPair      `json:"pair"`
	Timeframe      model.Timeframe      `json:"timeframe"`
	Recommendation model.Recommendation `json:"recommendation"`
	Trend          model.Trend          `json:"trend"`
	Price          float64              `json:"price"`
	RSI            float64              `json:"rsi"`
	Changes        int                  `json:"changes"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// State is the persisted watchlist.
type State struct {
	Entries      map[string]*Entry `json:"entries"`
	LastDigestAt time.Time         `json:"last_digest_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// LoadState reads the watchlist from a JSON file. Returns an empty state if the file doesn't exist.
func LoadState(filePath string) (*State, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{Entries: map[string]*Entry{}}, nil
		}
		return nil, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state.Entries == nil {
		state.Entries = map[string]*Entry{}
	}
	return &state, nil
}

// SaveState writes the watchlist to a JSON file.
func SaveState(filePath string, state *State) error {
	state.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0644)
}
