package cmd

import (
	"github.com/oneconcern/envmon/pkg/manifest"
	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:     "install <package>...",
	Aliases: []string{"i"},
	Short:   "Install packages",
	Long: `Install packages into the environment.

A package is designated by its pkg-path, optionally with a version: hello, python3@3.11.
The install id is the last component of the pkg-path.

The environment is changed only if it builds with the new packages.`,
	Example: `% envmon install curl jq
✅ 'curl' installed
✅ 'jq' installed`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := newContext()
		defer cancel()

		pkgs := make([]manifest.PackageToInstall, 0, len(args))
		for _, arg := range args {
			pkg, err := manifest.ParsePackage(arg)
			if err != nil {
				wrapFatalln("invalid package "+arg, err)
				return
			}
			pkgs = append(pkgs, pkg)
		}

		env, err := openEnvironment(ctx)
		if err != nil {
			wrapFatalln("open environment", err)
			return
		}
		result, err := env.Install(ctx, pkgs)
		if err != nil {
			wrapFatalln("install", err)
			return
		}
		for _, pkg := range pkgs {
			if result.AlreadyInstalled[pkg.ID] {
				infoLogger.Printf("%s package with id '%s' already installed", warning(), pkg.ID)
				continue
			}
			infoLogger.Printf("%s '%s' installed", success(), pkg.ID)
		}
	},
}

var uninstallCmd = &cobra.Command{
	Use:     "uninstall <package>...",
	Aliases: []string{"remove", "rm"},
	Short:   "Uninstall packages",
	Long: `Uninstall packages from the environment.

A package is designated by its install id, its pkg-path or pkg-path@version.`,
	Example: `% envmon uninstall curl
✅ 'curl' uninstalled`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := newContext()
		defer cancel()

		env, err := openEnvironment(ctx)
		if err != nil {
			wrapFatalln("open environment", err)
			return
		}
		result, err := env.Uninstall(ctx, args)
		if err != nil {
			wrapFatalln("uninstall", err)
			return
		}
		for _, id := range result.InstallIDs {
			infoLogger.Printf("%s '%s' uninstalled", success(), id)
		}
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
}
