package render

// classifyShaderWGSL is the compute kernel dispatched by the GPU batch
// classifier (gpu_hal.go). It is a general interval-arithmetic interpreter
// over the same Clause encoding package tape defines: one static kernel
// generic over any compiled tape rather than shader text generated per
// shape. One invocation classifies one tile: it walks every clause once,
// carrying an interval per register as a vec2 (x = lower bound, y = upper
// bound), and writes back which of Filled/Empty/Ambiguous the tile's root
// register landed in. Each interval op must be sound (never narrower than
// the true range); where a tight bound costs more than it saves, the op
// widens to the full range of the function instead.
//
// maxGPURegisters bounds the per-invocation register file; tapes with more
// live slots than this fall back to the CPU classifier (gpu_hal.go checks
// this before dispatch).
const maxGPURegisters = 64

const classifyShaderWGSL = `
struct Params {
  clause_count: u32,
  root_reg: u32,
  axis_x_reg: u32,
  axis_y_reg: u32,
  axis_z_reg: u32,
  tile_count: u32,
  _pad0: u32,
  _pad1: u32,
};

struct Clause {
  op: u32,
  mode: u32,
  lhs: u32,
  rhs: u32,
  out: u32,
  _pad0: u32,
  _pad1: u32,
  _pad2: u32,
};

struct TileBounds {
  x_lo: f32, x_hi: f32,
  y_lo: f32, y_hi: f32,
  z_lo: f32, z_hi: f32,
  _pad0: f32, _pad1: f32,
};

@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var<storage, read> clauses: array<Clause>;
@group(0) @binding(2) var<storage, read> consts: array<f32>;
@group(0) @binding(3) var<storage, read> tiles: array<TileBounds>;
@group(0) @binding(4) var<storage, read_write> classes: array<u32>;

const OP_SQUARE: u32 = 1u;
const OP_SQRT: u32 = 2u;
const OP_NEG: u32 = 3u;
const OP_SIN: u32 = 4u;
const OP_COS: u32 = 5u;
const OP_ASIN: u32 = 6u;
const OP_ACOS: u32 = 7u;
const OP_ATAN: u32 = 8u;
const OP_EXP: u32 = 9u;
const OP_ABS: u32 = 10u;
const OP_LOG: u32 = 11u;
const OP_ADD: u32 = 12u;
const OP_MUL: u32 = 13u;
const OP_MIN: u32 = 14u;
const OP_MAX: u32 = 15u;
const OP_SUB: u32 = 16u;
const OP_DIV: u32 = 17u;
const OP_COPY_IMM: u32 = 18u;
const OP_COPY_LHS: u32 = 19u;
const OP_COPY_RHS: u32 = 20u;

const MODE_IMM_REG: u32 = 1u;
const MODE_REG_IMM: u32 = 2u;
const MODE_IMM_IMM: u32 = 3u;

const CLASS_AMBIGUOUS: u32 = 1u;
const CLASS_FILLED: u32 = 2u;
const CLASS_EMPTY: u32 = 3u;

const PI: f32 = 3.14159265359;
const TWO_PI: f32 = 6.28318530718;
const HALF_PI: f32 = 1.57079632679;

var<private> regs: array<vec2<f32>, 64>;

fn operand(imm: bool, idx: u32) -> vec2<f32> {
  if (imm) {
    let v = consts[idx];
    return vec2<f32>(v, v);
  }
  return regs[idx];
}

// crosses_extremum reports whether x0 + k*2pi lands inside [a.x, a.y] for
// some integer k.
fn crosses_extremum(a: vec2<f32>, x0: f32) -> bool {
  let k = floor((a.x - x0) / TWO_PI);
  let x = x0 + (k + 1.0) * TWO_PI;
  return x <= a.y;
}

fn interval_sin(a: vec2<f32>) -> vec2<f32> {
  if (a.y - a.x >= TWO_PI) {
    return vec2<f32>(-1.0, 1.0);
  }
  let s0 = sin(a.x);
  let s1 = sin(a.y);
  var lo = min(s0, s1);
  var hi = max(s0, s1);
  if (crosses_extremum(a, HALF_PI) || crosses_extremum(a, HALF_PI - TWO_PI)) {
    hi = 1.0;
  }
  if (crosses_extremum(a, -HALF_PI) || crosses_extremum(a, -HALF_PI - TWO_PI)) {
    lo = -1.0;
  }
  return vec2<f32>(lo, hi);
}

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
  let tid = gid.x;
  if (tid >= params.tile_count) {
    return;
  }
  let b = tiles[tid];
  regs[params.axis_x_reg] = vec2<f32>(b.x_lo, b.x_hi);
  regs[params.axis_y_reg] = vec2<f32>(b.y_lo, b.y_hi);
  regs[params.axis_z_reg] = vec2<f32>(b.z_lo, b.z_hi);

  for (var i: u32 = 0u; i < params.clause_count; i = i + 1u) {
    let c = clauses[i];
    let lhsImm = c.mode == MODE_IMM_REG || c.mode == MODE_IMM_IMM;
    let rhsImm = c.mode == MODE_REG_IMM || c.mode == MODE_IMM_IMM;
    let lhs = operand(lhsImm, c.lhs);
    var out: vec2<f32>;
    if (c.op == OP_COPY_IMM || c.op == OP_COPY_LHS || c.op == OP_COPY_RHS) {
      // Every COPY form carries its selected operand in the lhs field.
      out = lhs;
    } else if (c.op == OP_SQUARE) {
      let a2 = lhs.x * lhs.x;
      let b2 = lhs.y * lhs.y;
      if (lhs.x <= 0.0 && lhs.y >= 0.0) {
        out = vec2<f32>(0.0, max(a2, b2));
      } else {
        out = vec2<f32>(min(a2, b2), max(a2, b2));
      }
    } else if (c.op == OP_SQRT) {
      out = vec2<f32>(sqrt(max(lhs.x, 0.0)), sqrt(max(lhs.y, 0.0)));
    } else if (c.op == OP_NEG) {
      out = vec2<f32>(-lhs.y, -lhs.x);
    } else if (c.op == OP_ABS) {
      if (lhs.x >= 0.0) {
        out = lhs;
      } else if (lhs.y <= 0.0) {
        out = vec2<f32>(-lhs.y, -lhs.x);
      } else {
        out = vec2<f32>(0.0, max(-lhs.x, lhs.y));
      }
    } else if (c.op == OP_EXP) {
      out = vec2<f32>(exp(lhs.x), exp(lhs.y));
    } else if (c.op == OP_LOG) {
      out = vec2<f32>(log(max(lhs.x, 1e-20)), log(max(lhs.y, 1e-20)));
    } else if (c.op == OP_SIN) {
      out = interval_sin(lhs);
    } else if (c.op == OP_COS) {
      out = interval_sin(vec2<f32>(lhs.x + HALF_PI, lhs.y + HALF_PI));
    } else if (c.op == OP_ASIN) {
      out = vec2<f32>(asin(clamp(lhs.x, -1.0, 1.0)), asin(clamp(lhs.y, -1.0, 1.0)));
    } else if (c.op == OP_ACOS) {
      // acos is monotonically decreasing: bounds swap.
      out = vec2<f32>(acos(clamp(lhs.y, -1.0, 1.0)), acos(clamp(lhs.x, -1.0, 1.0)));
    } else if (c.op == OP_ATAN) {
      out = vec2<f32>(atan(lhs.x), atan(lhs.y));
    } else {
      let rhs = operand(rhsImm, c.rhs);
      if (c.op == OP_ADD) {
        out = vec2<f32>(lhs.x + rhs.x, lhs.y + rhs.y);
      } else if (c.op == OP_SUB) {
        out = vec2<f32>(lhs.x - rhs.y, lhs.y - rhs.x);
      } else if (c.op == OP_MUL) {
        let p0 = lhs.x * rhs.x;
        let p1 = lhs.x * rhs.y;
        let p2 = lhs.y * rhs.x;
        let p3 = lhs.y * rhs.y;
        out = vec2<f32>(min(min(p0, p1), min(p2, p3)), max(max(p0, p1), max(p2, p3)));
      } else if (c.op == OP_DIV) {
        // A zero-straddling denominator widens to the full representable
        // range rather than risk an unsound bound.
        if (rhs.x <= 0.0 && rhs.y >= 0.0) {
          out = vec2<f32>(-3.4e38, 3.4e38);
        } else {
          let q0 = lhs.x / rhs.x;
          let q1 = lhs.x / rhs.y;
          let q2 = lhs.y / rhs.x;
          let q3 = lhs.y / rhs.y;
          out = vec2<f32>(min(min(q0, q1), min(q2, q3)), max(max(q0, q1), max(q2, q3)));
        }
      } else if (c.op == OP_MIN) {
        out = vec2<f32>(min(lhs.x, rhs.x), min(lhs.y, rhs.y));
      } else {
        out = vec2<f32>(max(lhs.x, rhs.x), max(lhs.y, rhs.y));
      }
    }
    regs[c.out] = out;
  }

  let root = regs[params.root_reg];
  if (root.y < 0.0) {
    classes[tid] = CLASS_FILLED;
  } else if (root.x > 0.0) {
    classes[tid] = CLASS_EMPTY;
  } else {
    classes[tid] = CLASS_AMBIGUOUS;
  }
}
`
