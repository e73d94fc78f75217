package uninstall

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lakshaymaurya-felt/winreclaim/internal/core"
	"github.com/lakshaymaurya-felt/winreclaim/internal/envutil"
	"github.com/lakshaymaurya-felt/winreclaim/internal/logging"
	"github.com/lakshaymaurya-felt/winreclaim/internal/match"
	"github.com/lakshaymaurya-felt/winreclaim/internal/platform"
)

// Discovery is what the uninstall records and product source reveal about
// the target.
type Discovery struct {
	// Paths are install directories in discovery order, de-duplicated
	// case-insensitively.
	Paths []string
	// Apps are the matching uninstall records.
	Apps []InstalledApp
	// ProductCodes are MSI product codes reported by the product source.
	ProductCodes []string
}

// Resolver finds install locations for the target terms.
type Resolver struct {
	Store    platform.ConfigStore
	Products platform.ProductSource // optional
	Terms    match.Terms
	Log      *logrus.Entry

	// Expand resolves %VAR% references; envutil.ExpandWindowsEnv when nil.
	Expand func(string) string
}

// Resolve reads every uninstall record and, when configured, the product
// source. Errors from the product source are logged and ignored.
func (r *Resolver) Resolve(ctx context.Context) Discovery {
	log := r.Log
	if log == nil {
		log = logging.Discard()
	}

	var d Discovery
	seen := make(map[string]bool)
	add := func(p string) {
		p = core.CleanPath(p)
		if len(p) <= 3 {
			return
		}
		key := strings.ToLower(p)
		if seen[key] {
			return
		}
		seen[key] = true
		d.Paths = append(d.Paths, p)
	}

	for _, app := range ReadRecords(r.Store) {
		if !r.Terms.MatchAny(app.Name, app.KeyName()) {
			continue
		}
		d.Apps = append(d.Apps, app)

		location := core.CleanPath(r.expand(app.InstallLocation))
		add(location)
		for _, dir := range r.commandDirs(app) {
			// Uninstallers often live in shared folders; only keep a
			// directory that is clearly the app's own.
			if r.Terms.Match(dir) || strings.EqualFold(dir, location) {
				add(dir)
			}
		}
	}

	if r.Products != nil && ctx.Err() == nil {
		products, err := r.Products.Products(ctx)
		switch {
		case errors.Is(err, platform.ErrUnsupported):
		case err != nil:
			log.WithError(err).Warn("product source query failed")
		default:
			for _, p := range products {
				if !r.Terms.Match(p.Name) {
					continue
				}
				add(r.expand(p.InstallLocation))
				if p.IdentifyingNumber != "" {
					d.ProductCodes = append(d.ProductCodes, p.IdentifyingNumber)
				}
			}
		}
	}

	log.WithFields(logrus.Fields{
		"apps":  len(d.Apps),
		"paths": len(d.Paths),
	}).Info("discovery finished")
	return d
}

// commandDirs returns the directories of the executables named by the
// record's uninstall commands and icon.
func (r *Resolver) commandDirs(app InstalledApp) []string {
	var dirs []string
	for _, cmdStr := range []string{app.UninstallString, app.QuietUninstallString} {
		if cmdStr == "" || detectInstallerType(cmdStr) == InstallerMSI {
			continue
		}
		exe, _ := parseUninstallString(r.expand(cmdStr))
		if dir := core.CleanPath(core.Dir(exe)); dir != "" {
			dirs = append(dirs, dir)
		}
	}
	if icon := iconPath(r.expand(app.DisplayIcon)); icon != "" {
		if dir := core.CleanPath(core.Dir(icon)); dir != "" {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

func (r *Resolver) expand(s string) string {
	if r.Expand != nil {
		return r.Expand(s)
	}
	return envutil.ExpandWindowsEnv(s)
}

// iconPath strips quotes and a trailing ",index" resource suffix.
func iconPath(icon string) string {
	icon = strings.TrimSpace(icon)
	if i := strings.LastIndexByte(icon, ','); i > 0 && !strings.ContainsAny(icon[i:], `\/`) {
		icon = icon[:i]
	}
	return core.CleanPath(icon)
}
