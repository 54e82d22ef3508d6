// Package appenv runs ephemeral application servers for integration tests.
//
// appenv scaffolds an application with the framework's own generator,
// overlays template directories onto it, installs its dependencies, starts
// the server as a separate process and verifies that it answers with the
// expected framework version. Tests then talk to it over HTTP and read the
// mail it delivered. The default toolchain drives a Rails application
// through Bundler; WithToolchain describes any other framework.
//
// # Basic Usage
//
//	import "github.com/giantswarm/appenv"
//
//	var servers appenv.Registry
//
//	func TestMain(m *testing.M) {
//	    servers = appenv.NewRegistry(appenv.WithTemplatesRoot("testdata/templates"))
//	    code := m.Run()
//	    if err := servers.StopAll(context.Background()); err != nil {
//	        log.Print(err)
//	    }
//	    os.Exit(code)
//	}
//
//	func TestHome(t *testing.T) {
//	    srv, err := servers.Start(ctx, appenv.Spec{Templates: []string{"blog"}})
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    body, err := srv.Get(ctx, "home", nil) // GET /blog/home
//	    // Check body...
//	}
//
// # Workspaces
//
// Each server lives in <base dir>/<version>/<name>. Setup destroys and
// recreates that directory once per process; later Start calls reuse it.
// Setup holds a file lock on the version directory, so test binaries
// running in parallel can share a base directory.
//
// # Failures
//
// A server that never answers its status endpoint yields a *StartupError
// carrying the last lines of the server log. A server reporting another
// framework version than requested yields a *VersionMismatchError. Both
// leave no process behind.
package appenv
