//go:build !windows && gssapi

// This file is compiled only when built with -tags gssapi: it requires
// cgo plus the system GSS-API/Kerberos headers and shared libraries
// (e.g. libkrb5-dev on Debian/Ubuntu), which most CI runners and dev
// machines do not have installed. negotiate_krb5.go is the default
// !windows provider and needs none of that; opt into this one only
// when the system GSS-API implementation (MIT or Heimdal) is required
// over the pure-Go client.

package httpauth

/*
#cgo LDFLAGS: -lgssapi_krb5 -lgssapi_krb5_format
#cgo pkg-config: krb5-gssapi

#include <gssapi/gssapi.h>
#include <gssapi/gssapi_krb5.h>
#include <stdlib.h>
#include <string.h>

static gss_buffer_desc mkbuf(void *p, size_t n) {
	gss_buffer_desc b;
	b.value = p;
	b.length = n;
	return b;
}
*/
import "C"

import (
	"errors"
	"fmt"
	"unsafe"
)

// gssapiProvider backs the Negotiate scheme with the system's real
// GSS-API library (typically MIT or Heimdal Kerberos), via the
// classic gss_init_sec_context / gss_display_status sequence. This
// uses the Kerberos credential the process already holds (a ticket
// cache populated by kinit or a keytab), not the application-supplied
// username/password: GSS-API's whole point is to avoid handling
// passwords directly, which is why ns.password is never read here
// (spec.md §4.5, §9).
type gssapiProvider struct{}

func init() {
	platformProvider = &gssapiProvider{}
}

func (*gssapiProvider) name() string { return "Negotiate" }

// gssapiHandshake holds the acceptor name and security context handle
// across calls to initSecContext for one negotiation.
type gssapiHandshake struct {
	ctx  C.gss_ctx_id_t
	name C.gss_name_t
}

func (*gssapiProvider) initSecContext(ns *negotiateState, target string, in []byte) (out []byte, complete bool, err error) {
	hs, _ := ns.providerCtx.(*gssapiHandshake)
	if hs == nil {
		spn := "HTTP@" + target
		cspn := C.CString(spn)
		defer C.free(unsafe.Pointer(cspn))

		nameBuf := C.mkbuf(unsafe.Pointer(cspn), C.size_t(len(spn)))

		var name C.gss_name_t
		var minor C.OM_uint32
		major := C.gss_import_name(&minor, &nameBuf, C.GSS_C_NT_HOSTBASED_SERVICE, &name)
		if major != C.GSS_S_COMPLETE {
			return nil, false, gssError("gss_import_name", major, minor)
		}

		hs = &gssapiHandshake{ctx: C.GSS_C_NO_CONTEXT, name: name}
		ns.providerCtx = hs
	}

	var inBuf C.gss_buffer_desc
	var cin *C.char
	if len(in) > 0 {
		cin = (*C.char)(C.CBytes(in))
		defer C.free(unsafe.Pointer(cin))
		inBuf = C.mkbuf(unsafe.Pointer(cin), C.size_t(len(in)))
	}

	var outBuf C.gss_buffer_desc
	var minor C.OM_uint32
	major := C.gss_init_sec_context(
		&minor,
		C.GSS_C_NO_CREDENTIAL,
		&hs.ctx,
		hs.name,
		C.GSS_C_NO_OID,
		C.GSS_C_MUTUAL_FLAG|C.GSS_C_SEQUENCE_FLAG,
		0,
		C.GSS_C_NO_CHANNEL_BINDINGS,
		&inBuf,
		nil,
		&outBuf,
		nil,
		nil,
	)
	if major != C.GSS_S_COMPLETE && major != C.GSS_S_CONTINUE_NEEDED {
		return nil, false, gssError("gss_init_sec_context", major, minor)
	}

	if outBuf.length > 0 {
		out = C.GoBytes(outBuf.value, C.int(outBuf.length))
		C.gss_release_buffer(&minor, &outBuf)
	}

	complete = major == C.GSS_S_COMPLETE
	return out, complete, nil
}

// verifyMutual feeds the server's final token back into
// gss_init_sec_context; GSS-API itself rejects a bad mutual-auth
// token with a non-complete major status rather than a separate call.
func (*gssapiProvider) verifyMutual(ns *negotiateState, in []byte) error {
	if len(in) == 0 {
		return nil
	}
	_, complete, err := (&gssapiProvider{}).initSecContext(ns, "", in)
	if err != nil {
		return err
	}
	if !complete {
		return errors.New("gss_init_sec_context: mutual authentication incomplete")
	}
	return nil
}

func (*gssapiProvider) deleteContext(ns *negotiateState) {
	hs, _ := ns.providerCtx.(*gssapiHandshake)
	if hs == nil {
		return
	}
	var minor C.OM_uint32
	if hs.ctx != C.GSS_C_NO_CONTEXT {
		C.gss_delete_sec_context(&minor, &hs.ctx, C.GSS_C_NO_BUFFER)
	}
	if hs.name != nil {
		C.gss_release_name(&minor, &hs.name)
	}
	ns.providerCtx = nil
}

func gssError(op string, major, minor C.OM_uint32) error {
	return fmt.Errorf("%s: major status 0x%x, minor status 0x%x", op, uint32(major), uint32(minor))
}
