package engine

// op names a mutation carried from client goroutines to the render thread.
type op uint8

const (
	opPlay op = iota + 1
	opStop
	opSetGain
	opSetPosition
	opSetLooping
	opSetBehaviour
	opSeek
	opSetListener
	opSetMasterGain
	opStopAll
	opAttachTap
	opDetachTap
)

// command is a plain value; only the render thread interprets it.
type command struct {
	op        op
	id        ID
	emitter   *Emitter
	f         float32
	n         int
	flag      bool
	position  Position
	behaviour Behaviour
	listener  Listener
	tap       *Tap
}

func (c *command) apply(e *Engine) {
	switch c.op {
	case opPlay:
		e.Add(c.emitter)
	case opSetListener:
		e.SetListener(c.listener)
	case opSetMasterGain:
		e.SetMasterGain(c.f)
	case opStopAll:
		e.StopAll()
	case opAttachTap:
		e.AttachTap(c.tap)
	case opDetachTap:
		e.DetachTap(c.tap)
	default:
		em := e.Lookup(c.id)
		if em == nil || em.IsDone() {
			return
		}
		c.applyEmitter(em)
	}
}

func (c *command) applyEmitter(em *Emitter) {
	switch c.op {
	case opStop:
		em.Stop()
	case opSetGain:
		em.SetGain(c.f)
	case opSetPosition:
		em.SetPosition(c.position)
	case opSetLooping:
		em.SetLooping(c.flag)
	case opSetBehaviour:
		em.SetBehaviour(c.behaviour)
	case opSeek:
		em.Seek(c.n)
	}
}
