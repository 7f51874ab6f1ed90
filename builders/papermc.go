package builders

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// DefaultPaperMCBaseURL is the PaperMC downloads API root.
const DefaultPaperMCBaseURL = "https://api.papermc.io"

// PaperMC builds projects published through the PaperMC downloads API
// (paper, folia, velocity, waterfall). The latest build of a version is
// downloaded and stored as "Build <n> [<version>].jar".
type PaperMC struct {
	Project string
	BaseURL string
	client  *http.Client
}

func NewPaperMC(project string, client *http.Client) *PaperMC {
	return &PaperMC{Project: project, BaseURL: DefaultPaperMCBaseURL, client: client}
}

type paperProject struct {
	ProjectID string   `json:"project_id"`
	Versions  []string `json:"versions"`
}

type paperBuilds struct {
	Version string       `json:"version"`
	Builds  []paperBuild `json:"builds"`
}

type paperBuild struct {
	Build     int                      `json:"build"`
	Channel   string                   `json:"channel"`
	Downloads map[string]paperDownload `json:"downloads"`
}

type paperDownload struct {
	Name   string `json:"name"`
	SHA256 string `json:"sha256"`
}

func (p *PaperMC) projectURL() string {
	return strings.TrimRight(p.BaseURL, "/") + "/v2/projects/" + url.PathEscape(p.Project)
}

func (p *PaperMC) KnownVersions(ctx context.Context) ([]string, error) {
	var project paperProject
	if err := fetchJSON(ctx, p.client, p.projectURL(), &project); err != nil {
		return nil, fmt.Errorf("%s versions: %w", p.Project, err)
	}
	return project.Versions, nil
}

// latestBuild returns the newest build of version, preferring the default
// channel over experimental ones.
func (p *PaperMC) latestBuild(ctx context.Context, version string) (paperBuild, error) {
	var builds paperBuilds
	endpoint := p.projectURL() + "/versions/" + url.PathEscape(version) + "/builds"
	if err := fetchJSON(ctx, p.client, endpoint, &builds); err != nil {
		return paperBuild{}, fmt.Errorf("%s %s builds: %w", p.Project, version, err)
	}
	if len(builds.Builds) == 0 {
		return paperBuild{}, fmt.Errorf("%w: %s %s has no builds", ErrUnknownVersion, p.Project, version)
	}

	var best, fallback *paperBuild
	for i := range builds.Builds {
		b := &builds.Builds[i]
		if fallback == nil || b.Build > fallback.Build {
			fallback = b
		}
		if b.Channel == "" || b.Channel == "default" {
			if best == nil || b.Build > best.Build {
				best = b
			}
		}
	}
	if best == nil {
		best = fallback
	}
	return *best, nil
}

func (p *PaperMC) Build(ctx context.Context, bctx BuildContext, args Args) error {
	if err := args.Require(ArgVersion); err != nil {
		return err
	}
	version := args.Version()
	if readOutput(bctx.OutputDir).hasBuildOf(version) == Present {
		return fmt.Errorf("%w: %s %s", ErrAlreadyBuilt, p.Project, version)
	}

	build, err := p.latestBuild(ctx, version)
	if err != nil {
		return err
	}
	app, ok := build.Downloads["application"]
	if !ok || app.Name == "" {
		return fmt.Errorf("%s %s build %d: no application download", p.Project, version, build.Build)
	}

	endpoint := fmt.Sprintf("%s/versions/%s/builds/%d/downloads/%s",
		p.projectURL(), url.PathEscape(version), build.Build, url.PathEscape(app.Name))
	tmp, err := download(ctx, p.client, endpoint, bctx.OutputDir, sha256.New(), app.SHA256)
	if err != nil {
		return err
	}
	return installFile(tmp, bctx.OutputDir, BuildArtifactName(build.Build, version))
}

func (p *PaperMC) AlreadyBuilt(ctx context.Context, bctx BuildContext, args Args) (Existence, error) {
	if err := args.Require(ArgVersion); err != nil {
		return Unknown, err
	}
	return readOutput(bctx.OutputDir).hasBuildOf(args.Version()), nil
}

func (p *PaperMC) AlreadyBuiltBulk(ctx context.Context, bctx BuildContext, argsList []Args) ([]Existence, error) {
	listing := readOutput(bctx.OutputDir)
	out := make([]Existence, len(argsList))
	for i, args := range argsList {
		if args.Version() == "" {
			out[i] = Unknown
			continue
		}
		out[i] = listing.hasBuildOf(args.Version())
	}
	return out, nil
}
