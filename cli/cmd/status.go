package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/sounder/cli/render"
	"github.com/justapithecus/sounder/store"
	"github.com/justapithecus/sounder/types"
)

// StatusView is the rendered shape of the persisted monitor record.
type StatusView struct {
	CollectionID string                  `json:"collectionId" yaml:"collectionId"`
	SavedAt      string                  `json:"savedAt" yaml:"savedAt"`
	Snapshot     *types.ProgressSnapshot `json:"snapshot" yaml:"snapshot"`
}

// TableRows implements render.Tabler.
func (v StatusView) TableRows() [][2]string {
	rows := [][2]string{
		{"Collection", v.CollectionID},
		{"Saved At", v.SavedAt},
	}
	if v.Snapshot == nil {
		return rows
	}
	rows = append(rows,
		[2]string{"Status", string(v.Snapshot.Status)},
		[2]string{"Progress", fmt.Sprintf("%.1f%%", v.Snapshot.ProgressPercentage)},
		[2]string{"Files", fmt.Sprintf("%d / %d", v.Snapshot.FilesProcessed, v.Snapshot.TotalFiles)},
		[2]string{"Documents", fmt.Sprintf("%d", v.Snapshot.DocumentsCreated)},
		[2]string{"Chunks", fmt.Sprintf("%d", v.Snapshot.ChunksCreated)},
	)
	if v.Snapshot.ErrorsCount > 0 {
		rows = append(rows, [2]string{"Errors", fmt.Sprintf("%d", v.Snapshot.ErrorsCount)})
	}
	if v.Snapshot.LastError != nil {
		rows = append(rows, [2]string{"Last Error", *v.Snapshot.LastError})
	}
	return rows
}

// StatusCommand returns the status command. It reads the persisted
// monitor record locally and never contacts the backend.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show the last persisted indexing progress",
		Flags:  ReadOnlyFlags(),
		Action: statusAction,
	}
}

func statusAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	rec, err := st.Load()
	if errors.Is(err, store.ErrCorrupted) {
		return cli.Exit("persisted record is corrupted; run watch to start fresh", 1)
	}
	if err != nil {
		return err
	}
	if rec == nil {
		return cli.Exit("no monitored indexing run", 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(StatusView{
		CollectionID: rec.CollectionID,
		SavedAt:      time.UnixMilli(rec.SavedAt).UTC().Format(time.RFC3339),
		Snapshot:     rec.Snapshot,
	})
}
