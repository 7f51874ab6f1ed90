package builders

import (
	"context"
	"crypto/sha1"
	"fmt"
	"net/http"
)

// DefaultVanillaManifestURL lists every Mojang release.
const DefaultVanillaManifestURL = "https://piston-meta.mojang.com/mc/game/version_manifest_v2.json"

// Vanilla downloads Mojang server jars for release versions, stored as
// "<version>.jar".
type Vanilla struct {
	ManifestURL string
	client      *http.Client
}

func NewVanilla(client *http.Client) *Vanilla {
	return &Vanilla{ManifestURL: DefaultVanillaManifestURL, client: client}
}

type vanillaManifest struct {
	Versions []vanillaVersion `json:"versions"`
}

type vanillaVersion struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

type vanillaPackage struct {
	Downloads struct {
		Server *struct {
			SHA1 string `json:"sha1"`
			URL  string `json:"url"`
		} `json:"server"`
	} `json:"downloads"`
}

func vanillaArtifactName(version string) string {
	return version + ".jar"
}

func (v *Vanilla) releases(ctx context.Context) ([]vanillaVersion, error) {
	var manifest vanillaManifest
	if err := fetchJSON(ctx, v.client, v.ManifestURL, &manifest); err != nil {
		return nil, fmt.Errorf("vanilla manifest: %w", err)
	}
	out := make([]vanillaVersion, 0, len(manifest.Versions))
	for _, version := range manifest.Versions {
		if version.Type == "release" {
			out = append(out, version)
		}
	}
	return out, nil
}

func (v *Vanilla) KnownVersions(ctx context.Context) ([]string, error) {
	releases, err := v.releases(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(releases))
	for _, r := range releases {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (v *Vanilla) Build(ctx context.Context, bctx BuildContext, args Args) error {
	if err := args.Require(ArgVersion); err != nil {
		return err
	}
	version := args.Version()
	name := vanillaArtifactName(version)
	if readOutput(bctx.OutputDir).has(name) == Present {
		return fmt.Errorf("%w: vanilla %s", ErrAlreadyBuilt, version)
	}

	releases, err := v.releases(ctx)
	if err != nil {
		return err
	}
	var packageURL string
	for _, r := range releases {
		if r.ID == version {
			packageURL = r.URL
			break
		}
	}
	if packageURL == "" {
		return fmt.Errorf("%w: vanilla %s", ErrUnknownVersion, version)
	}

	var pkg vanillaPackage
	if err := fetchJSON(ctx, v.client, packageURL, &pkg); err != nil {
		return fmt.Errorf("vanilla %s package: %w", version, err)
	}
	// Very old releases ship no server jar.
	if pkg.Downloads.Server == nil || pkg.Downloads.Server.URL == "" {
		return fmt.Errorf("vanilla %s: no server download", version)
	}

	tmp, err := download(ctx, v.client, pkg.Downloads.Server.URL, bctx.OutputDir, sha1.New(), pkg.Downloads.Server.SHA1)
	if err != nil {
		return err
	}
	return installFile(tmp, bctx.OutputDir, name)
}

func (v *Vanilla) AlreadyBuilt(ctx context.Context, bctx BuildContext, args Args) (Existence, error) {
	if err := args.Require(ArgVersion); err != nil {
		return Unknown, err
	}
	return readOutput(bctx.OutputDir).has(vanillaArtifactName(args.Version())), nil
}

func (v *Vanilla) AlreadyBuiltBulk(ctx context.Context, bctx BuildContext, argsList []Args) ([]Existence, error) {
	listing := readOutput(bctx.OutputDir)
	out := make([]Existence, len(argsList))
	for i, args := range argsList {
		if args.Version() == "" {
			out[i] = Unknown
			continue
		}
		out[i] = listing.has(vanillaArtifactName(args.Version()))
	}
	return out, nil
}
