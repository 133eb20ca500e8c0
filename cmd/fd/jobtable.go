package main

import (
	"github.com/go-ini/ini"

	"github.com/hfs/afd-sub000/internal/mdb"
	"github.com/hfs/afd-sub000/internal/protocol"
)

// iniJobIDTable backs mdb.JobIDTable with a flat INI file: the real
// job-id master table is an external system FD only ever reads from
// (§1 Non-goals); this is the stand-in a standalone binary needs to
// have something to look up against.
type iniJobIDTable struct {
	path string
}

func newJobIDTable(path string) mdb.JobIDTable {
	return &iniJobIDTable{path: path}
}

func (t *iniJobIDTable) Lookup(id mdb.JobID) (mdb.Entry, bool) {
	f, err := ini.Load(t.path)
	if err != nil {
		return mdb.Entry{}, false
	}
	sec, err := f.GetSection(keyFor(id))
	if err != nil {
		return mdb.Entry{}, false
	}
	return mdb.Entry{
		JobID:             id,
		FSAPos:            sec.Key("fsa_pos").MustInt(0),
		Protocol:          protocol.Variant(sec.Key("protocol").MustInt(int(protocol.Unknown))),
		Port:              sec.Key("port").MustInt(0),
		AgeLimit:          sec.Key("age_limit").MustInt64(0),
		QualifiedHostName: sec.Key("qualified_host_name").String(),
	}, true
}

func keyFor(id mdb.JobID) string {
	return "job_" + itoa(uint32(id))
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
