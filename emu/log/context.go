package log

// A Context adds fields to every log entry, for instance the current CPU
// program counter or the PPU position.
type Context interface {
	AddLogContext(e *EntryZ)
}

var contexts []Context

func AddContext(c Context) {
	contexts = append(contexts, c)
}

func RemoveContext(c Context) {
	for i := range contexts {
		if contexts[i] == c {
			contexts = append(contexts[:i], contexts[i+1:]...)
			return
		}
	}
}
