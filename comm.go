package mpi

import (
	"encoding/binary"
	"sort"

	"github.com/behrlich/shmmpi/internal/collectives"
	"github.com/behrlich/shmmpi/internal/commgroup"
	"github.com/behrlich/shmmpi/internal/wire"
)

// rcEndpoint adapts RuntimeContext to internal/collectives.Endpoint.
// It exists as a separate type, rather than methods directly on
// RuntimeContext, because Endpoint's Send/Recv/Sendrecv take raw
// byte buffers and communicator-local ranks while the public
// Send/Recv/Sendrecv take a count/Datatype pair and already-typed
// arguments — the two signatures can't share a method name.
type rcEndpoint struct {
	rc *RuntimeContext
}

func (e rcEndpoint) Send(buf []byte, dest wire.Rank, tag int32, comm wire.CommId) error {
	c := e.rc.comm(comm)
	grank := commgroup.RankMap(c, dest)
	wtag := commgroup.TagMap(c, tag)
	req, err := e.rc.postSend(buf, grank, wtag, comm)
	if err != nil {
		return err
	}
	_, err = req.Wait()
	return err
}

func (e rcEndpoint) Recv(buf []byte, src wire.Rank, tag int32, comm wire.CommId) (wire.Status, error) {
	c := e.rc.comm(comm)
	grank := commgroup.RankMap(c, src)
	wtag := commgroup.TagMap(c, tag)
	req, err := e.rc.postRecv(buf, grank, wtag, comm)
	if err != nil {
		return wire.Status{}, err
	}
	stat, err := req.Wait()
	return toWireStatus(stat), err
}

func (e rcEndpoint) Sendrecv(sbuf []byte, dest wire.Rank, stag int32, rbuf []byte, src wire.Rank, rtag int32, comm wire.CommId) (wire.Status, error) {
	c := e.rc.comm(comm)
	sgrank := commgroup.RankMap(c, dest)
	swtag := commgroup.TagMap(c, stag)
	rgrank := commgroup.RankMap(c, src)
	rwtag := commgroup.TagMap(c, rtag)

	sreq, err := e.rc.postSend(sbuf, sgrank, swtag, comm)
	if err != nil {
		return wire.Status{}, err
	}
	rreq, err := e.rc.postRecv(rbuf, rgrank, rwtag, comm)
	if err != nil {
		return wire.Status{}, err
	}
	if _, err := sreq.Wait(); err != nil {
		return wire.Status{}, err
	}
	stat, err := rreq.Wait()
	return toWireStatus(stat), err
}

func (e rcEndpoint) CommSize(comm wire.CommId) wire.Rank {
	c := e.rc.comm(comm)
	if c == nil {
		return 0
	}
	return wire.Rank(c.Size())
}

func (e rcEndpoint) CommRank(comm wire.CommId) wire.Rank {
	c := e.rc.comm(comm)
	if c == nil {
		return -1
	}
	return c.Rank
}

func (e rcEndpoint) KeyChange(comm wire.CommId) func() {
	return commgroup.KeyChanger(e.rc.comm(comm))
}

func toWireStatus(s Status) wire.Status {
	return wire.Status{Source: s.Source, Tag: s.Tag, Count: s.Count, Error: int32(s.Error)}
}

// Comm_size returns the number of members of comm.
func (rc *RuntimeContext) Comm_size(comm CommId) (int32, error) {
	c := rc.comm(comm)
	if c == nil {
		return 0, rc.fail("Comm_size", comm, ErrComm)
	}
	return c.Size(), nil
}

// Comm_rank returns this process's rank within comm.
func (rc *RuntimeContext) Comm_rank(comm CommId) (Rank, error) {
	c := rc.comm(comm)
	if c == nil {
		return 0, rc.fail("Comm_rank", comm, ErrComm)
	}
	return c.Rank, nil
}

// Comm_get_errhandler returns the error handler bound to comm.
func (rc *RuntimeContext) Comm_get_errhandler(comm CommId) (ErrHandler, error) {
	if !rc.registry.Valid(comm) {
		return nil, rc.fail("Comm_get_errhandler", comm, ErrComm)
	}
	return rc.errHandlerFor(comm), nil
}

// Comm_set_errhandler binds h to comm, replacing whatever handler was
// previously bound (ERRORS_ARE_FATAL by default).
func (rc *RuntimeContext) Comm_set_errhandler(comm CommId, h ErrHandler) error {
	if !rc.registry.Valid(comm) {
		return rc.fail("Comm_set_errhandler", comm, ErrComm)
	}
	rc.mu.Lock()
	rc.errHandlers[comm] = h
	rc.mu.Unlock()
	return nil
}

// Comm_call_errhandler invokes comm's bound error handler with class,
// the way a library-internal failure path surfaces a wire-level error
// class through the caller's chosen handler.
func (rc *RuntimeContext) Comm_call_errhandler(comm CommId, class ErrorClass) error {
	return rc.errHandlerFor(comm).Handle(comm, class)
}

// Comm_dup creates a new communicator with the same membership and
// rank ordering as comm, but a distinct tag-namespace key, so the
// duplicate's traffic can never collide with the original's. Every
// member of comm must call Comm_dup; the new key generator value is
// agreed by an Allreduce-max over each member's locally proposed next
// key, so every rank's registry advances identically regardless of
// what each rank had already handed out locally.
func (rc *RuntimeContext) Comm_dup(comm CommId) (CommId, error) {
	src := rc.comm(comm)
	if src == nil {
		return wire.CommNull, rc.fail("Comm_dup", comm, ErrComm)
	}

	agreed, err := rc.agreeKeyMax(comm, rc.registry.NextKey())
	if err != nil {
		return wire.CommNull, err
	}

	dup := &commgroup.Communicator{
		Prank:      append([]wire.Rank(nil), src.Prank...),
		Rank:       src.Rank,
		Key:        agreed,
		ErrHandler: src.ErrHandler,
	}
	return rc.registerComm(dup, comm), nil
}

// splitMember is one rank's Comm_split proposal, exchanged via
// Allgather so every member learns every other member's color and
// key before computing the new communicator's membership locally.
type splitMember struct {
	grank wire.Rank
	color int32
	key   int32
}

const splitMemberSize = 12

func (m splitMember) encode(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], uint32(m.grank))
	binary.LittleEndian.PutUint32(b[4:8], uint32(m.color))
	binary.LittleEndian.PutUint32(b[8:12], uint32(m.key))
}

func decodeSplitMember(b []byte) splitMember {
	return splitMember{
		grank: wire.Rank(binary.LittleEndian.Uint32(b[0:4])),
		color: int32(binary.LittleEndian.Uint32(b[4:8])),
		key:   int32(binary.LittleEndian.Uint32(b[8:12])),
	}
}

// Comm_split partitions comm's members by color, ordering each new
// sub-communicator's local ranks by key (ties broken by rank in comm,
// as MPI_Comm_split specifies). A caller passing a negative color is
// excluded from every resulting communicator and gets back CommNull,
// the way MPI_UNDEFINED does; it still takes part in the Allgather and
// the key agreement every member of comm runs.
func (rc *RuntimeContext) Comm_split(comm CommId, color, key int32) (CommId, error) {
	src := rc.comm(comm)
	if src == nil {
		return wire.CommNull, rc.fail("Comm_split", comm, ErrComm)
	}

	size := int(src.Size())
	mine := splitMember{grank: commgroup.RankMap(src, src.Rank), color: color, key: key}
	sbuf := make([]byte, splitMemberSize)
	mine.encode(sbuf)
	rbuf := make([]byte, splitMemberSize*size)

	ep := rcEndpoint{rc: rc}
	restore := ep.KeyChange(comm)
	err := collectives.Allgather(ep, sbuf, rbuf, comm)
	restore()
	if err != nil {
		return wire.CommNull, err
	}

	all := make([]splitMember, size)
	for i := range all {
		all[i] = decodeSplitMember(rbuf[i*splitMemberSize : (i+1)*splitMemberSize])
	}

	agreed, err := rc.agreeKeyMax(comm, rc.registry.NextKey())
	if err != nil {
		return wire.CommNull, err
	}

	if color < 0 {
		return wire.CommNull, nil
	}

	var mates []splitMember
	for _, m := range all {
		if m.color == color {
			mates = append(mates, m)
		}
	}
	sort.Slice(mates, func(i, j int) bool {
		if mates[i].key != mates[j].key {
			return mates[i].key < mates[j].key
		}
		return commgroup.RankUnmap(src, mates[i].grank) < commgroup.RankUnmap(src, mates[j].grank)
	})

	prank := make([]wire.Rank, len(mates))
	var myLocal wire.Rank
	for i, m := range mates {
		prank[i] = m.grank
		if m.grank == mine.grank {
			myLocal = wire.Rank(i)
		}
	}

	split := &commgroup.Communicator{
		Prank:      prank,
		Rank:       myLocal,
		Key:        agreed,
		ErrHandler: src.ErrHandler,
	}
	return rc.registerComm(split, comm), nil
}

// registerComm appends c to the registry and inherits parent's bound
// error handler for the new id.
func (rc *RuntimeContext) registerComm(c *commgroup.Communicator, parent CommId) CommId {
	id := rc.registry.Append(c)
	rc.mu.Lock()
	rc.errHandlers[id] = rc.errHandlerFor(parent)
	rc.mu.Unlock()
	return id
}

// agreeKeyMax runs an Allreduce-max over every member's proposed next
// key so a Dup or Split lands every rank's registry at the same
// key-generator high-water mark, whichever rank proposed the largest
// value.
func (rc *RuntimeContext) agreeKeyMax(comm CommId, proposed int32) (int32, error) {
	ep := rcEndpoint{rc: rc}
	sbuf := make([]byte, 4)
	rbuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(sbuf, uint32(proposed))
	if err := collectives.Allreduce(ep, sbuf, rbuf, wire.Int, wire.OpMax, comm, collectives.AllreduceReduceBcast); err != nil {
		return 0, err
	}
	agreed := int32(binary.LittleEndian.Uint32(rbuf))
	if agreed >= rc.registry.KeyMax() {
		rc.registry.SetKeyMax(agreed + 2)
	}
	return agreed, nil
}
