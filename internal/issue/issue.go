// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"maps"
	"slices"

	"github.com/charmbracelet/glamour"
)

type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	ModuleStateInvalidId
	ModulesDirNotFoundId
	ManifestParseErrorId
	ModuleNotFoundId
	DependencyCycleId
	ModuleToggleRefusedId
	ReloadFailedId
	ServerStartFailedId
	HostKeyUnavailableId
	JournalUnavailableId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue guidance for a terminal. An empty stylePath
// selects glamour's automatic style.
func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also\n"
		for _, link := range i.docLinks {
			extraMd += "\n- " + string(link)
		}
		for _, link := range i.extLinks {
			extraMd += "\n- " + string(link)
		}
	}
	if stylePath == "" {
		stylePath = "auto"
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

modhost could not read or validate its configuration file.

## Things you can try:
- Print the path modhost reads its configuration from:
~~~
$ modhost config path
~~~

- Regenerate a default configuration next to it:
~~~
$ modhost config init
~~~

- Check the CUE syntax and the field values. Environment variables
  prefixed with ` + "`MODHOST_`" + ` override file values, for example
  ` + "`MODHOST_HTTP_ADDR=127.0.0.1:9000`" + `.`,
	}

	moduleStateInvalidIssue = &Issue{
		id: ModuleStateInvalidId,
		mdMsg: `
# Module state file is invalid!

The persisted module state (` + "`modules.cue`" + `) does not match its schema.

## Expected shape:
~~~cue
disabled: ["weather"]
colours: {
	error:   15747399
	success: 6549575
	warn:    16763481
	standby: 10395294
	neutral: 3259125
}
response_deletion_time: 15000
reload: {load_baseline: true, clear_old_commands: false}
~~~

## Things you can try:
- Fix the reported field, or delete the file to have defaults written back`,
	}

	modulesDirNotFoundIssue = &Issue{
		id: ModulesDirNotFoundId,
		mdMsg: `
# Modules directory not found!

Manifest modules are discovered in one directory per module under the
configured ` + "`modules.dir`" + `.

## Things you can try:
- Create the directory and add a module:
~~~
$ mkdir -p ~/.config/modhost/modules/greeter
$ $EDITOR ~/.config/modhost/modules/greeter/module.cue
~~~

- Or point ` + "`modules.dir`" + ` at an existing directory in config.cue`,
	}

	manifestParseErrorIssue = &Issue{
		id: ManifestParseErrorId,
		mdMsg: `
# Failed to parse module manifest!

A ` + "`module.cue`" + ` or ` + "`module.toml`" + ` file contains syntax errors or fields
the manifest schema does not accept.

## Common issues:
- Directory name and manifest ` + "`id`" + ` differ
- Module IDs must be at least 3 characters of ` + "`a-z`" + `, ` + "`0-9`" + `, ` + "`_`" + ` or ` + "`-`" + `
- A command without a ` + "`script`" + `

## Example manifest:
~~~cue
id:      "greeter"
name:    "Greeter"
version: "1.0.0"
commands: [{
	name:        "hello"
	description: "Say hello"
	script:      "reply \"hello $MODHOST_USER\""
}]
~~~`,
	}

	moduleNotFoundIssue = &Issue{
		id: ModuleNotFoundId,
		mdMsg: `
# Module not found!

The requested module is not known to this host.

## Things you can try:
- List the modules discovered by the last reload:
~~~
$ modhost modules list
~~~

- Reload so newly added manifests are discovered`,
	}

	dependencyCycleIssue = &Issue{
		id: DependencyCycleId,
		mdMsg: `
# Dependency cycle detected!

Modules in a dependency cycle can never be loaded and are evicted on reload.

## Things you can try:
- Print the load order and the modules involved:
~~~
$ modhost modules graph
~~~

- Remove one of the ` + "`dependencies`" + ` entries that close the cycle`,
	}

	moduleToggleRefusedIssue = &Issue{
		id: ModuleToggleRefusedId,
		mdMsg: `
# Module state change refused!

Enabling requires the module and all of its dependencies to be loadable.
Disabling is refused for unknown, inactive and protected modules.

## Things you can try:
- Check the module status and the reason it is inactive:
~~~
$ modhost modules list
~~~

- Enable the dependencies first`,
	}

	reloadFailedIssue = &Issue{
		id: ReloadFailedId,
		mdMsg: `
# Reload finished with failures!

Some modules could not be loaded. The remaining modules are active.

## Things you can try:
- Inspect the journal for the failed modules:
~~~
$ modhost modules history
~~~`,
	}

	serverStartFailedIssue = &Issue{
		id: ServerStartFailedId,
		mdMsg: `
# Failed to start a server!

The HTTP or SSH adapter could not listen on its configured address.

## Things you can try:
- Make sure no other process uses the port
- Change ` + "`http.addr`" + ` or ` + "`ssh.addr`" + ` in config.cue`,
	}

	hostKeyUnavailableIssue = &Issue{
		id: HostKeyUnavailableId,
		mdMsg: `
# SSH host key unavailable!

The console server could neither read nor create its host key.

## Things you can try:
- Check the permissions of the directory holding ` + "`ssh.host_key_path`" + `
- Point ` + "`ssh.host_key_path`" + ` at a writable location`,
	}

	journalUnavailableIssue = &Issue{
		id: JournalUnavailableId,
		mdMsg: `
# Lifecycle journal unavailable!

The SQLite journal could not be opened.

## Things you can try:
- Check the permissions of ` + "`journal.path`" + `
- Disable the journal with ` + "`journal: enabled: false`" + ``,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():    configLoadFailedIssue,
		moduleStateInvalidIssue.Id():  moduleStateInvalidIssue,
		modulesDirNotFoundIssue.Id():  modulesDirNotFoundIssue,
		manifestParseErrorIssue.Id():  manifestParseErrorIssue,
		moduleNotFoundIssue.Id():      moduleNotFoundIssue,
		dependencyCycleIssue.Id():     dependencyCycleIssue,
		moduleToggleRefusedIssue.Id(): moduleToggleRefusedIssue,
		reloadFailedIssue.Id():        reloadFailedIssue,
		serverStartFailedIssue.Id():   serverStartFailedIssue,
		hostKeyUnavailableIssue.Id():  hostKeyUnavailableIssue,
		journalUnavailableIssue.Id():  journalUnavailableIssue,
	}
)

// Values returns every known issue ordered by ID.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return cmp.Compare(a.id, b.id)
	})
}

func Get(id Id) *Issue {
	return issues[id]
}
