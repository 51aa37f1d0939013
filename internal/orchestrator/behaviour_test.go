package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/imamik/daas/internal/kube"
	"github.com/imamik/daas/internal/model"
)

var _ = Describe("Engine", func() {
	var (
		f       *fixture
		release chan struct{}
	)

	const (
		timeout  = 5 * time.Second
		interval = 10 * time.Millisecond
	)

	idle := func() bool { return !f.engine.Active(testServerID) }

	BeforeEach(func() {
		f = newFixture()
		release = make(chan struct{})
	})

	// blockOn makes the first call through the hook wait for release.
	blockOn := func() func() {
		var once sync.Once
		return func() {
			once.Do(func() { <-release })
		}
	}

	Context("with concurrent requests for one server", func() {
		It("never runs two workers at once", func() {
			Expect(f.seed(newServer())).To(Succeed())

			var inflight, peak atomic.Int32
			f.cluster.EnsureDeploymentFunc = func(context.Context, kube.ServerSpec) error {
				n := inflight.Add(1)
				defer inflight.Add(-1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				return nil
			}

			var wg sync.WaitGroup
			for range 20 {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					Expect(f.engine.RequestAction(testServerID, model.ActionReconfigure)).To(Succeed())
				}()
			}
			wg.Wait()

			Eventually(idle, timeout, interval).Should(BeTrue())
			Expect(peak.Load()).To(Equal(int32(1)))
			Expect(f.server().Status).To(Equal(model.StatusReady))
		})

		It("publishes a server's phases in confirmation order", func() {
			Expect(f.seed(newServer())).To(Succeed())
			Expect(f.engine.RequestAction(testServerID, model.ActionProvision)).To(Succeed())
			Eventually(idle, timeout, interval).Should(BeTrue())

			Expect(phasesOf(f.serverEvents())).To(Equal([]model.Phase{
				model.PhaseNone,
				model.PhaseReplicationResource,
				model.PhaseNetworkService,
				model.PhaseInitializeConfiguration,
				model.PhaseIngressRoute,
				model.PhaseIngressRoute,
			}))
		})
	})

	Context("while an action is running", func() {
		BeforeEach(func() {
			Expect(f.seed(newServer())).To(Succeed())
			wait := blockOn()
			f.cluster.EnsureDeploymentFunc = func(context.Context, kube.ServerSpec) error {
				wait()
				return nil
			}
			Expect(f.engine.RequestAction(testServerID, model.ActionProvision)).To(Succeed())
			Eventually(func() int { return f.cluster.Count("EnsureDeployment") }, timeout, interval).Should(Equal(1))
		})

		It("lets the latest queued request win", func() {
			Expect(f.engine.RequestAction(testServerID, model.ActionReconfigure)).To(Succeed())
			Expect(f.engine.RequestAction(testServerID, model.ActionDeprovision)).To(Succeed())
			close(release)

			Eventually(idle, timeout, interval).Should(BeTrue())
			Expect(f.server().Status).To(Equal(model.StatusDeprovisioned))
			Expect(f.cluster.Count("EnsureDeployment")).To(Equal(1), "the superseded reconfigure never ran")
		})

		It("keeps a queued deprovision against later provision requests", func() {
			Expect(f.engine.RequestAction(testServerID, model.ActionDeprovision)).To(Succeed())
			Expect(f.engine.RequestAction(testServerID, model.ActionReconfigure)).To(MatchError(ErrDeprovisionInProgress))
			Expect(f.engine.RequestAction(testServerID, model.ActionProvision)).To(MatchError(ErrDeprovisionInProgress))
			close(release)

			Eventually(idle, timeout, interval).Should(BeTrue())
			Expect(f.server().Status).To(Equal(model.StatusDeprovisioned))
			Expect(f.cluster.Count("EnsureDeployment")).To(Equal(1))
		})

		It("finishes the current step on shutdown and leaves the rest for resume", func() {
			done := make(chan error, 1)
			go func() { done <- f.engine.Shutdown(context.Background()) }()

			Eventually(func() error {
				return f.engine.RequestAction("srv-2", model.ActionProvision)
			}, timeout, interval).Should(MatchError(ErrShuttingDown))
			Consistently(done, 50*time.Millisecond).ShouldNot(Receive())

			close(release)
			Eventually(done, timeout).Should(Receive(BeNil()))

			srv := f.server()
			Expect(srv.Status).To(Equal(model.StatusProcessing))
			Expect(srv.Action).To(Equal(model.ActionProvision))
			Expect(srv.Phase).To(Equal(model.PhaseReplicationResource))
			Expect(f.cluster.Count("EnsureService")).To(BeZero())
		})
	})

	Context("while a deprovision is running", func() {
		BeforeEach(func() {
			Expect(f.seed(newServer(atPhase(model.PhaseIngressRoute, model.StatusReady)))).To(Succeed())
			wait := blockOn()
			f.cluster.DeleteIngressFunc = func(context.Context, string) error {
				wait()
				return nil
			}
			Expect(f.engine.RequestAction(testServerID, model.ActionDeprovision)).To(Succeed())
			Eventually(func() int { return f.cluster.Count("DeleteIngress") }, timeout, interval).Should(Equal(1))
		})

		It("rejects provision and reconfigure", func() {
			Expect(f.engine.RequestAction(testServerID, model.ActionProvision)).To(MatchError(ErrDeprovisionInProgress))
			Expect(f.engine.RequestAction(testServerID, model.ActionReconfigure)).To(MatchError(ErrDeprovisionInProgress))
			close(release)

			Eventually(idle, timeout, interval).Should(BeTrue())
			Expect(f.server().Status).To(Equal(model.StatusDeprovisioned))
			Expect(f.cluster.Count("EnsureDeployment")).To(BeZero())
		})

		It("accepts a repeated deprovision", func() {
			Expect(f.engine.RequestAction(testServerID, model.ActionDeprovision)).To(Succeed())
			close(release)

			Eventually(idle, timeout, interval).Should(BeTrue())
			Expect(f.cluster.Count("DeleteIngress")).To(Equal(2))
			Expect(f.server().Status).To(Equal(model.StatusDeprovisioned))
		})
	})
})
