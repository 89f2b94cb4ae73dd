// Package flow is the facade over the launcher's remote API. Every method is
// a named call through the plugin's request correlator; the host performs the
// action and replies when done.
package flow

import (
	"context"
	"encoding/json"
	"fmt"
)

// Caller issues one remote call and blocks until the host replies.
// *jsonrpc.Client implements it.
type Caller interface {
	Request(ctx context.Context, method string, params []any) (json.RawMessage, error)
}

// API wraps a Caller with the launcher's method vocabulary.
type API struct {
	caller Caller
}

// New builds an API over c.
func New(c Caller) *API {
	return &API{caller: c}
}

// Call issues an arbitrary launcher API method, for methods the typed
// wrappers don't cover.
func (a *API) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	return a.caller.Request(ctx, method, params)
}

func (a *API) call(ctx context.Context, method string, params ...any) error {
	_, err := a.caller.Request(ctx, method, params)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

// ChangeQuery replaces the text in the launcher's search box. requery forces
// a fresh query request even when the text is unchanged.
func (a *API) ChangeQuery(ctx context.Context, newQuery string, requery bool) error {
	return a.call(ctx, "ChangeQuery", newQuery, requery)
}

// BackToQueryResults leaves a context menu and restores the query results.
func (a *API) BackToQueryResults(ctx context.Context) error {
	return a.call(ctx, "BackToQueryResults")
}

// UpdateResults replaces the results shown for rawQuery. The host ignores the
// call if the user has typed something else since.
func (a *API) UpdateResults(ctx context.Context, rawQuery string, results any) error {
	return a.call(ctx, "UpdateResults", rawQuery, results)
}

// ShowErrorMessage pops an error message box.
func (a *API) ShowErrorMessage(ctx context.Context, title, text string) error {
	return a.call(ctx, "ShowMsgError", title, text)
}

// ShowNotification shows a desktop notification.
func (a *API) ShowNotification(ctx context.Context, title, content string) error {
	return a.call(ctx, "ShowMsg", title, content, "")
}

// OpenSettingsMenu opens the launcher's settings dialog.
func (a *API) OpenSettingsMenu(ctx context.Context) error {
	return a.call(ctx, "OpenSettingDialog")
}

// OpenURL opens url in the default browser, optionally in private mode.
func (a *API) OpenURL(ctx context.Context, url string, inPrivate bool) error {
	return a.call(ctx, "OpenUrl", url, inPrivate)
}

// OpenDirectory opens a directory in the file manager, preselecting file if
// given.
func (a *API) OpenDirectory(ctx context.Context, directory, file string) error {
	if file == "" {
		return a.call(ctx, "OpenDirectory", directory, nil)
	}
	return a.call(ctx, "OpenDirectory", directory, file)
}

// CopyToClipboard puts text on the clipboard. directCopy marks the text as a
// file path to copy as a file; showDefaultNotification controls the host's
// copied toast.
func (a *API) CopyToClipboard(ctx context.Context, text string, directCopy, showDefaultNotification bool) error {
	return a.call(ctx, "CopyToClipboard", text, directCopy, showDefaultNotification)
}

// ShellRun executes a shell command through the host.
func (a *API) ShellRun(ctx context.Context, cmd string) error {
	return a.call(ctx, "ShellRun", cmd)
}

// RestartApp restarts the launcher.
func (a *API) RestartApp(ctx context.Context) error {
	return a.call(ctx, "RestartApp")
}

// SaveAppAllSettings persists all launcher settings.
func (a *API) SaveAppAllSettings(ctx context.Context) error {
	return a.call(ctx, "SaveAppAllSettings")
}

// ReloadAllPluginData asks the host to reload every plugin's data.
func (a *API) ReloadAllPluginData(ctx context.Context) error {
	return a.call(ctx, "ReloadAllPluginDataAsync")
}

// ShowMainWindow reveals the launcher window.
func (a *API) ShowMainWindow(ctx context.Context) error {
	return a.call(ctx, "ShowMainWindow")
}

// HideMainWindow hides the launcher window.
func (a *API) HideMainWindow(ctx context.Context) error {
	return a.call(ctx, "HideMainWindow")
}

// IsMainWindowVisible reports whether the launcher window is on screen.
func (a *API) IsMainWindowVisible(ctx context.Context) (bool, error) {
	raw, err := a.caller.Request(ctx, "IsMainWindowVisible", []any{})
	if err != nil {
		return false, fmt.Errorf("IsMainWindowVisible: %w", err)
	}
	var visible bool
	if err := json.Unmarshal(raw, &visible); err != nil {
		return false, fmt.Errorf("IsMainWindowVisible: malformed reply: %w", err)
	}
	return visible, nil
}

// AddActionKeyword registers an extra action keyword for a plugin.
func (a *API) AddActionKeyword(ctx context.Context, pluginID, keyword string) error {
	return a.call(ctx, "AddActionKeyword", pluginID, keyword)
}

// RemoveActionKeyword removes an action keyword from a plugin.
func (a *API) RemoveActionKeyword(ctx context.Context, pluginID, keyword string) error {
	return a.call(ctx, "RemoveActionKeyword", pluginID, keyword)
}

// CheckForUpdates asks the host to look for a new launcher version.
func (a *API) CheckForUpdates(ctx context.Context) error {
	return a.call(ctx, "CheckForNewUpdate")
}
