package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/sounder/cli/render"
	"github.com/justapithecus/sounder/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version string `json:"version" yaml:"version"`
	Commit  string `json:"commit" yaml:"commit"`
}

// TableRows implements render.Tabler.
func (v VersionResponse) TableRows() [][2]string {
	return [][2]string{
		{"Version", v.Version},
		{"Commit", v.Commit},
	}
}

// VersionCommand returns the version command. It never contacts the
// backend.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  []cli.Flag{FormatFlag},
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := render.NewRenderer(c)
		if err != nil {
			return err
		}
		return r.Render(VersionResponse{
			Version: types.Version,
			Commit:  commit,
		})
	}
}
