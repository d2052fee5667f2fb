package app

import (
	"errors"
	"fmt"
	"strings"
)

// Command はstarterapiのサブコマンド。
type Command string

const (
	// CommandServe はRPC APIを提供する。引数なしの場合の既定値。
	CommandServe Command = "serve"
	// CommandWorker は期限切れセッションの定期削除を行う。
	CommandWorker Command = "worker"
	// CommandMigrate はスキーマを最新まで適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中のサーバーに問い合わせる。distrolessのHEALTHCHECK用。
	CommandHealthcheck Command = "healthcheck"
)

// commands は受け付けるサブコマンドの一覧。usage表示の順序も兼ねる。
var commands = []Command{CommandServe, CommandWorker, CommandMigrate, CommandHealthcheck}

// ErrUnknownCommand は未知のサブコマンドが指定された場合に返る。
var ErrUnknownCommand = errors.New("unknown command")

// ParseCommand は先頭の引数からサブコマンドを決定する。2つ目以降の引数は無視する。
// 綴り間違いでAPIサーバーが起動しないよう、未知のコマンドはエラーにする。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}
	for _, c := range commands {
		if args[0] == string(c) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w %q (available: %s)", ErrUnknownCommand, args[0], usage())
}

func usage() string {
	names := make([]string, len(commands))
	for i, c := range commands {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
